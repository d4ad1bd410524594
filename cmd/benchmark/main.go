// 离线基准工具：用合成报告驱动完整的质量反馈循环，
// 评估评分器、修正重试与持久化层的吞吐与行为，无需真实LLM。
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/schollz/progressbar/v3"

	"github.com/researchkeeper/service/internal/agents"
	"github.com/researchkeeper/service/internal/models"
	"github.com/researchkeeper/service/internal/services"
	"github.com/researchkeeper/service/internal/store"
)

// syntheticExecutor 按概率生成不同质量档位的合成报告。
// 重试时质量档位上移一级，模拟修正指令生效。
type syntheticExecutor struct {
	rng *rand.Rand
	// 当前查询的质量档位: 0=劣, 1=中, 2=优
	tier int
}

func (e *syntheticExecutor) nextQuery() {
	e.tier = e.rng.Intn(3)
}

func (e *syntheticExecutor) ExecuteStage(ctx context.Context, role agents.StageRole, instructions, query, upstreamContext string) (string, error) {
	if role != agents.RoleWriter {
		return gofakeit.Paragraph(2, 4, 10, " "), nil
	}

	// 带修正指令的重试：质量档位上移
	tier := e.tier
	if strings.Contains(instructions, "QUALITY FEEDBACK") && tier < 2 {
		tier++
	}
	return syntheticReport(tier), nil
}

// syntheticReport 生成指定质量档位的报告
func syntheticReport(tier int) string {
	switch tier {
	case 0:
		// 无章节无结构
		return gofakeit.Paragraph(1, 3, 8, " ")
	case 1:
		// 有结构但缺章节
		var b strings.Builder
		b.WriteString("# " + gofakeit.Sentence(4) + "\n\n")
		b.WriteString("## Background\n## Details\n\n")
		for i := 0; i < 5; i++ {
			b.WriteString("* " + gofakeit.Sentence(8) + "\n")
		}
		return b.String()
	default:
		// 完整报告：必需章节、结构、证据信号
		var b strings.Builder
		b.WriteString("# " + gofakeit.Sentence(4) + "\n\n")
		b.WriteString("## Overview\n" + gofakeit.Paragraph(1, 3, 10, " ") + "\n\n")
		b.WriteString("## Key Claims\n")
		for i := 1; i <= 3; i++ {
			b.WriteString(fmt.Sprintf("* Claim %d: %s according to recent research.\n", i, gofakeit.Sentence(6)))
		}
		b.WriteString("\n## Supporting Evidence\n")
		for i := 0; i < 3; i++ {
			b.WriteString("* Evidence: " + gofakeit.Sentence(8) + "\n")
		}
		b.WriteString("\n## Sources\n")
		for i := 0; i < 2; i++ {
			b.WriteString("* " + gofakeit.URL() + "\n")
		}
		return b.String()
	}
}

func main() {
	queries := flag.Int("n", 50, "查询次数")
	seed := flag.Int64("seed", time.Now().UnixNano(), "随机种子")
	flag.Parse()

	log.SetFlags(0)
	gofakeit.Seed(*seed)

	storageDir, err := os.MkdirTemp("", "research-benchmark-")
	if err != nil {
		log.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(storageDir)

	history, err := store.NewFileHistoryStore(storageDir)
	if err != nil {
		log.Fatalf("创建历史存储失败: %v", err)
	}
	defer history.Close()

	executor := &syntheticExecutor{rng: rand.New(rand.NewSource(*seed))}
	svc := services.NewResearchService(
		agents.NewPipeline(executor),
		history,
		nil,
		services.NewPerformanceTracker(),
	)

	// 基准期间丢弃常规服务日志，只保留进度条与结果
	log.SetOutput(io.Discard)

	bar := progressbar.NewOptions(*queries,
		progressbar.OptionSetDescription("执行合成研究"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stdout),
	)

	start := time.Now()
	failures := 0
	for i := 0; i < *queries; i++ {
		executor.nextQuery()
		query := gofakeit.Question()
		if _, err := svc.Run(context.Background(), &models.ResearchRequest{Query: query}); err != nil {
			failures++
		}
		bar.Add(1)
	}
	elapsed := time.Since(start)

	stats := svc.Tracker().Stats()
	fmt.Println()
	fmt.Printf("查询总数:     %d (失败 %d)\n", *queries, failures)
	fmt.Printf("总耗时:       %v (%.1f 次/秒)\n", elapsed, float64(*queries)/elapsed.Seconds())
	fmt.Printf("平均质量:     %.3f\n", stats.AverageQuality)
	fmt.Printf("重试占比:     %.1f%%\n", stats.RetryRate*100)
	fmt.Printf("改进占比:     %.1f%%\n", stats.ImprovementRate*100)
	fmt.Printf("质量趋势:     %s\n", stats.Trend)
}
