package models

import (
	"time"

	"github.com/google/uuid"
)

// API请求/响应模型 ---------------------------------

// ResearchRequest 研究请求
type ResearchRequest struct {
	Query          string `json:"query"`
	IncludeHistory bool   `json:"includeHistory,omitempty"` // 是否返回相关历史查询
	MaxSources     int    `json:"maxSources,omitempty"`     // 检索阶段的最大来源数
}

// QueryRequest 前端兼容的简化查询请求
type QueryRequest struct {
	Query string `json:"query"`
}

// ResearchResponse 研究响应
type ResearchResponse struct {
	Success   bool              `json:"success"`
	Query     string            `json:"query"`
	Report    string            `json:"report"`
	Metadata  *ResearchMetadata `json:"metadata,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// ResearchMetadata 单次研究的元数据
type ResearchMetadata struct {
	Query          string                `json:"query"`
	QueryID        string                `json:"query_id"`
	ExecutionTime  float64               `json:"execution_time"` // 秒
	QualityScore   float64               `json:"quality_score"`
	QualityMetrics *QualityMetrics       `json:"quality_metrics"`
	ClaimsCount    int                   `json:"claims_count"`
	SourcesCount   int                   `json:"sources_count"`
	RetryCount     int                   `json:"retry_count"`
	Improved       bool                  `json:"improved"`
	Improvements   []*ImprovementStep    `json:"improvements"`
	PastContext    []*QueryOutcomeSummary `json:"past_context,omitempty"`
}

// 质量评估模型 ---------------------------------

// QualityMetrics 报告质量指标，由报告文本确定性推导
type QualityMetrics struct {
	Completeness  float64 `json:"completeness"`   // 必需章节覆盖率 [0,1]
	Structure     float64 `json:"structure"`      // 标题/列表结构信号 {0, 0.5, 1}
	EvidenceRatio float64 `json:"evidence_ratio"` // 证据信号/主张信号 [0,1]
	Overall       float64 `json:"overall"`        // 加权总分 0.4/0.3/0.3
}

// MeetsThreshold 总分是否达到质量阈值
func (m *QualityMetrics) MeetsThreshold(threshold float64) bool {
	return m.Overall >= threshold
}

// ReportCounts 报告中抽取的统计计数
type ReportCounts struct {
	ClaimsCount  int `json:"claims_count"`
	SourcesCount int `json:"sources_count"`
}

// 质量反馈重试模型 ---------------------------------

// Attempt 单次流水线执行的临时记录，不单独持久化
type Attempt struct {
	Report     string          `json:"report"`
	Metrics    *QualityMetrics `json:"metrics"`
	RetryIndex int             `json:"retry_index"`
}

// ImprovementStep 一次重试的改进记录
type ImprovementStep struct {
	RetryIndex      int     `json:"retry"`
	PreviousQuality float64 `json:"previous_quality"`
	Enhancement     string  `json:"enhancement"`
}

// RunResult 重试控制器的终态结果
type RunResult struct {
	Report       string             `json:"report"`
	Metrics      *QualityMetrics    `json:"metrics"`
	RetryCount   int                `json:"retry_count"`
	Improvements []*ImprovementStep `json:"improvements"`
}

// InitialQuality 首次尝试的质量总分。
// 发生过重试时取第一次改进记录的previous_quality，否则就是终态总分。
func (r *RunResult) InitialQuality() float64 {
	if len(r.Improvements) > 0 {
		return r.Improvements[0].PreviousQuality
	}
	return r.Metrics.Overall
}

// 持久化模型 ---------------------------------

// QueryOutcome 一次研究的持久化结果
type QueryOutcome struct {
	ID            string    `json:"id"`
	Query         string    `json:"query"`
	Report        string    `json:"report"`
	QualityScore  float64   `json:"quality_score"`
	ClaimsCount   int       `json:"claims_count"`
	EvidenceCount int       `json:"evidence_count"`
	SourcesCount  int       `json:"sources_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewQueryOutcome 创建新的查询结果记录
func NewQueryOutcome(query, report string, qualityScore float64, counts *ReportCounts) *QueryOutcome {
	return &QueryOutcome{
		ID:            uuid.New().String(),
		Query:         query,
		Report:        report,
		QualityScore:  qualityScore,
		ClaimsCount:   counts.ClaimsCount,
		EvidenceCount: counts.ClaimsCount, // 与原始统计口径一致：证据数按主张数记
		SourcesCount:  counts.SourcesCount,
		Timestamp:     time.Now(),
	}
}

// QueryOutcomeSummary 历史查询的摘要视图
type QueryOutcomeSummary struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	QualityScore float64   `json:"quality_score"`
	Timestamp    time.Time `json:"timestamp"`
}

// HistoryStats 历史存储统计
type HistoryStats struct {
	TotalQueries int     `json:"total_queries"`
	TotalClaims  int     `json:"total_claims"`
	TotalSources int     `json:"total_sources"`
	AvgQuality   float64 `json:"avg_quality"`
}

// HistoryStore 历史查询存储接口，由具体后端（postgres/file）实现
type HistoryStore interface {
	// StoreOutcome 保存一次查询结果，返回记录ID
	StoreOutcome(outcome *QueryOutcome) (string, error)

	// FetchRecent 按时间倒序获取最近的查询摘要
	FetchRecent(limit int) ([]*QueryOutcomeSummary, error)

	// SearchByText 按查询文本子串搜索历史记录
	SearchByText(substring string, limit int) ([]*QueryOutcome, error)

	// Stats 获取历史统计
	Stats() (*HistoryStats, error)

	// Close 关闭存储
	Close() error
}

// 学习效果追踪模型 ---------------------------------

// PerformanceRecord 单次查询的质量反馈记录，仅进程内存活
type PerformanceRecord struct {
	Query          string             `json:"query"`
	InitialQuality float64            `json:"initial_quality"`
	FinalQuality   float64            `json:"final_quality"`
	RetryCount     int                `json:"retry_count"`
	Improved       bool               `json:"improved"`
	Improvements   []*ImprovementStep `json:"improvements"`
	Timestamp      time.Time          `json:"timestamp"`
}

// TrackerStats 学习效果统计
type TrackerStats struct {
	TotalQueries    int     `json:"total_queries"`
	AverageQuality  float64 `json:"average_quality"`
	ImprovementRate float64 `json:"improvement_rate"` // 发生过重试改进的查询占比
	RetryRate       float64 `json:"retry_rate"`       // 至少重试一次的查询占比
	Trend           string  `json:"trend"`            // improving / stable / insufficient_data
}

// 趋势取值
const (
	TrendImproving        = "improving"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)
