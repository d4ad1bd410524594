package agents

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/researchkeeper/service/internal/llm"
)

// StageExecutor 单阶段执行能力接口。
// 每个阶段被视为黑盒：可能耗时数秒到数十秒，可能产生任意文本。
type StageExecutor interface {
	ExecuteStage(ctx context.Context, role StageRole, instructions, query, upstreamContext string) (string, error)
}

// StageProgressFunc 阶段进度回调，role为当前阶段，index从0开始
type StageProgressFunc func(role StageRole, index, total int)

// Pipeline 四阶段研究流水线执行器
type Pipeline struct {
	executor   StageExecutor
	onProgress StageProgressFunc
}

// NewPipeline 创建流水线执行器
func NewPipeline(executor StageExecutor) *Pipeline {
	return &Pipeline{executor: executor}
}

// SetProgressFunc 设置阶段进度回调（可选）
func (p *Pipeline) SetProgressFunc(fn StageProgressFunc) {
	p.onProgress = fn
}

// Execute 执行一次完整流水线，返回writer阶段的最终报告。
// enhancement非空时注入到每个阶段的指令前。
// 任一阶段失败即中止整次执行，不保留部分结果。
func (p *Pipeline) Execute(ctx context.Context, query, enhancement string) (string, error) {
	upstreamContext := ""

	for i, role := range PipelineStages {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("pipeline aborted before stage %s: %w", role, err)
		}

		if p.onProgress != nil {
			p.onProgress(role, i, len(PipelineStages))
		}

		start := time.Now()
		instructions := BuildStageInstructions(role, query, enhancement)

		output, err := p.executor.ExecuteStage(ctx, role, instructions, query, upstreamContext)
		if err != nil {
			return "", fmt.Errorf("stage %s failed: %w", role, err)
		}

		log.Printf("[流水线] 阶段 %s 完成, 耗时: %v, 输出长度: %d", role, time.Since(start), len(output))
		upstreamContext = output
	}

	return upstreamContext, nil
}

// =============================================================================
// LLM阶段执行器
// =============================================================================

// SearchTool 网络检索工具接口，researcher阶段可选使用
type SearchTool interface {
	Search(ctx context.Context, query string, maxResults int) (string, error)
}

// LLMStageExecutor 基于LLM客户端的阶段执行器
type LLMStageExecutor struct {
	client      llm.LLMClient
	searchTool  SearchTool
	maxTokens   int
	temperature float64
	maxSources  int
}

// NewLLMStageExecutor 创建LLM阶段执行器
func NewLLMStageExecutor(client llm.LLMClient, searchTool SearchTool) *LLMStageExecutor {
	return &LLMStageExecutor{
		client:      client,
		searchTool:  searchTool,
		maxTokens:   2000,
		temperature: 0.3,
		maxSources:  5,
	}
}

// SetMaxSources 设置researcher阶段的最大来源数
func (e *LLMStageExecutor) SetMaxSources(n int) {
	if n > 0 {
		e.maxSources = n
	}
}

// ExecuteStage 执行单个阶段
func (e *LLMStageExecutor) ExecuteStage(ctx context.Context, role StageRole, instructions, query, upstreamContext string) (string, error) {
	// researcher阶段先做网络检索，结果并入上下文
	if role == RoleResearcher && e.searchTool != nil {
		results, err := e.searchTool.Search(ctx, query, e.maxSources)
		if err != nil {
			// 检索失败不中止阶段，LLM退化为凭自身知识作答
			log.Printf("[流水线] 警告: 网络检索失败, researcher阶段将不使用检索结果: %v", err)
		} else if results != "" {
			if upstreamContext != "" {
				upstreamContext += "\n\n"
			}
			upstreamContext += "--- Web search results ---\n" + results
		}
	}

	req := &llm.LLMRequest{
		SystemPrompt: SystemPromptFor(role),
		Prompt:       BuildStagePrompt(instructions, upstreamContext),
		MaxTokens:    e.maxTokens,
		Temperature:  e.temperature,
	}

	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	return resp.Content, nil
}
