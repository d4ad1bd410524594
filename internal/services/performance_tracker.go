package services

import (
	"sync"
	"time"

	"github.com/researchkeeper/service/internal/models"
)

// 趋势比较的采样窗口
const trendWindow = 5

// PerformanceTracker 质量反馈循环的进程级效果追踪。
// 服务启动时创建，随进程存活，不做持久化，重启即清零。
// 记录只增不减：这是诊断数据而非事实存储，无淘汰是有意为之。
type PerformanceTracker struct {
	mu      sync.RWMutex
	records []*models.PerformanceRecord
}

// NewPerformanceTracker 创建追踪器
func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{}
}

// Record 追加一条查询记录。并发安全，追加原子。
func (t *PerformanceTracker) Record(query string, result *models.RunResult) {
	initial := result.InitialQuality()
	final := result.Metrics.Overall

	record := &models.PerformanceRecord{
		Query:          query,
		InitialQuality: initial,
		FinalQuality:   final,
		RetryCount:     result.RetryCount,
		Improved:       final > initial,
		Improvements:   result.Improvements,
		Timestamp:      time.Now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, record)
}

// Stats 汇总统计
func (t *PerformanceTracker) Stats() *models.TrackerStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := &models.TrackerStats{
		TotalQueries: len(t.records),
		Trend:        t.trendLocked(),
	}

	if len(t.records) == 0 {
		return stats
	}

	improved := 0
	retried := 0
	qualitySum := 0.0
	for _, r := range t.records {
		qualitySum += r.FinalQuality
		if r.Improved {
			improved++
		}
		if r.RetryCount > 0 {
			retried++
		}
	}

	total := float64(len(t.records))
	stats.AverageQuality = qualitySum / total
	stats.ImprovementRate = float64(improved) / total
	stats.RetryRate = float64(retried) / total

	return stats
}

// History 返回全部记录的副本（切片复制，记录本身只读）
func (t *PerformanceTracker) History() []*models.PerformanceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	history := make([]*models.PerformanceRecord, len(t.records))
	copy(history, t.records)
	return history
}

// trendLocked 比较最近≤5条与最早≤5条的平均终态质量。
// 调用方必须持有读锁。
func (t *PerformanceTracker) trendLocked() string {
	if len(t.records) < 2 {
		return models.TrendInsufficientData
	}

	window := trendWindow
	if len(t.records) < window {
		window = len(t.records)
	}

	earlyMean := meanFinalQuality(t.records[:window])
	recentMean := meanFinalQuality(t.records[len(t.records)-window:])

	if recentMean > earlyMean {
		return models.TrendImproving
	}
	return models.TrendStable
}

func meanFinalQuality(records []*models.PerformanceRecord) float64 {
	sum := 0.0
	for _, r := range records {
		sum += r.FinalQuality
	}
	return sum / float64(len(records))
}
