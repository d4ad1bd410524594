// Package services 实现研究流程的编排：
// 带质量反馈的重试控制循环、结果持久化与效果追踪。
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/researchkeeper/service/internal/agents"
	"github.com/researchkeeper/service/internal/models"
	"github.com/researchkeeper/service/internal/quality"
)

// 重试控制默认参数
const (
	DefaultQualityThreshold = 0.65
	DefaultMaxRetries       = 2
)

// ResearchService 研究服务门面。
// 编排顺序：流水线执行 → 质量评估 → (不达标则修正重试) → 统计抽取 →
// 持久化 → 效果追踪。持久化与追踪失败只降级为警告，不影响成功结果。
type ResearchService struct {
	pipeline *agents.Pipeline
	history  models.HistoryStore
	vector   models.VectorStore // 可为nil，表示向量索引未启用
	tracker  *PerformanceTracker

	qualityThreshold float64
	maxRetries       int
}

// NewResearchService 创建研究服务
func NewResearchService(pipeline *agents.Pipeline, history models.HistoryStore, vector models.VectorStore, tracker *PerformanceTracker) *ResearchService {
	return &ResearchService{
		pipeline:         pipeline,
		history:          history,
		vector:           vector,
		tracker:          tracker,
		qualityThreshold: DefaultQualityThreshold,
		maxRetries:       DefaultMaxRetries,
	}
}

// SetQualityThreshold 设置质量阈值
func (s *ResearchService) SetQualityThreshold(threshold float64) {
	if threshold > 0 && threshold <= 1 {
		s.qualityThreshold = threshold
	}
}

// SetMaxRetries 设置最大重试次数
func (s *ResearchService) SetMaxRetries(maxRetries int) {
	if maxRetries >= 0 {
		s.maxRetries = maxRetries
	}
}

// Tracker 获取效果追踪器
func (s *ResearchService) Tracker() *PerformanceTracker {
	return s.tracker
}

// History 获取历史存储
func (s *ResearchService) History() models.HistoryStore {
	return s.history
}

// Vector 获取向量存储，可能为nil
func (s *ResearchService) Vector() models.VectorStore {
	return s.vector
}

// Run 执行一次完整研究。
// 仅流水线阶段失败会使整次Run失败；最终尝试成功后，
// 统计抽取、持久化、追踪的任何失败都不会再推翻结果。
func (s *ResearchService) Run(ctx context.Context, req *models.ResearchRequest) (*models.ResearchResponse, error) {
	start := time.Now()
	log.Printf("[研究服务] 开始研究: %s", req.Query)

	result, err := s.runWithRetries(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	// 统计抽取与质量评分一致，都只依赖报告文本
	counts := quality.ExtractCounts(result.Report)

	// 持久化：失败降级为警告
	outcome := models.NewQueryOutcome(req.Query, result.Report, result.Metrics.Overall, counts)
	queryID := outcome.ID
	if storedID, err := s.history.StoreOutcome(outcome); err != nil {
		log.Printf("[研究服务] 警告: 历史存储写入失败: %v", err)
	} else {
		queryID = storedID
	}

	// 向量索引：未启用或失败都不影响结果
	if s.vector != nil {
		doc := &models.VectorDocument{
			ID:      queryID,
			Content: result.Report,
			Metadata: map[string]string{
				"query":     req.Query,
				"query_id":  queryID,
				"timestamp": outcome.Timestamp.Format(time.RFC3339),
			},
		}
		if err := s.vector.IndexDocument(ctx, doc); err != nil {
			log.Printf("[研究服务] 警告: 向量索引失败: %v", err)
		}
	}

	// 效果追踪
	s.tracker.Record(req.Query, result)

	executionTime := time.Since(start).Seconds()
	log.Printf("[研究服务] 研究完成, 耗时: %.2fs, 质量: %.2f, 重试: %d次, 主张: %d, 来源: %d",
		executionTime, result.Metrics.Overall, result.RetryCount, counts.ClaimsCount, counts.SourcesCount)

	metadata := &models.ResearchMetadata{
		Query:          req.Query,
		QueryID:        queryID,
		ExecutionTime:  executionTime,
		QualityScore:   result.Metrics.Overall,
		QualityMetrics: result.Metrics,
		ClaimsCount:    counts.ClaimsCount,
		SourcesCount:   counts.SourcesCount,
		RetryCount:     result.RetryCount,
		Improved:       result.Metrics.Overall > result.InitialQuality(),
		Improvements:   result.Improvements,
	}

	// 相关历史查询（可选），失败同样不影响结果
	if req.IncludeHistory {
		metadata.PastContext = s.searchPastQueries(req.Query, 3)
	}

	return &models.ResearchResponse{
		Success:   true,
		Query:     req.Query,
		Report:    result.Report,
		Metadata:  metadata,
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil
}

// runWithRetries 重试控制循环。
// 不做best-of-N回退：后一次尝试得分更低也采用最新结果。
func (s *ResearchService) runWithRetries(ctx context.Context, query string) (*models.RunResult, error) {
	report, err := s.pipeline.Execute(ctx, query, "")
	if err != nil {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	metrics := quality.Evaluate(report)
	log.Printf("[研究服务] 初次评估: overall=%.2f (completeness=%.2f structure=%.2f evidence=%.2f)",
		metrics.Overall, metrics.Completeness, metrics.Structure, metrics.EvidenceRatio)

	retryCount := 0
	// 空切片而非nil，保证无重试时序列化为[]
	improvements := make([]*models.ImprovementStep, 0)

	for metrics.Overall < s.qualityThreshold && retryCount < s.maxRetries {
		retryCount++
		enhancement := quality.BuildEnhancement(metrics)

		improvements = append(improvements, &models.ImprovementStep{
			RetryIndex:      retryCount,
			PreviousQuality: metrics.Overall,
			Enhancement:     enhancement,
		})

		log.Printf("[研究服务] 质量 %.2f 低于阈值 %.2f, 第 %d/%d 次修正重试",
			metrics.Overall, s.qualityThreshold, retryCount, s.maxRetries)

		report, err = s.pipeline.Execute(ctx, query, enhancement)
		if err != nil {
			return nil, fmt.Errorf("pipeline retry %d failed: %w", retryCount, err)
		}

		metrics = quality.Evaluate(report)
		log.Printf("[研究服务] 重试 %d 评估: overall=%.2f", retryCount, metrics.Overall)
	}

	// 重试耗尽同样是成功终态，最新尝试的报告即为可用结果
	return &models.RunResult{
		Report:       report,
		Metrics:      metrics,
		RetryCount:   retryCount,
		Improvements: improvements,
	}, nil
}

// searchPastQueries 检索相关历史查询摘要
func (s *ResearchService) searchPastQueries(query string, limit int) []*models.QueryOutcomeSummary {
	outcomes, err := s.history.SearchByText(query, limit)
	if err != nil {
		log.Printf("[研究服务] 警告: 历史查询检索失败: %v", err)
		return nil
	}

	summaries := make([]*models.QueryOutcomeSummary, 0, len(outcomes))
	for _, o := range outcomes {
		summaries = append(summaries, &models.QueryOutcomeSummary{
			ID:           o.ID,
			Query:        o.Query,
			QualityScore: o.QualityScore,
			Timestamp:    o.Timestamp,
		})
	}
	return summaries
}
