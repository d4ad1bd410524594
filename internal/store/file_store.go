// Package store 提供历史查询存储的具体后端实现。
// 文件存储是零依赖的默认后端，Postgres后端用于生产部署。
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/researchkeeper/service/internal/models"
)

// FileHistoryStore 基于JSON文件的历史存储。
// 每条查询结果一个文件，内存中维护全量索引，写入即落盘。
type FileHistoryStore struct {
	storePath string
	outcomes  map[string]*models.QueryOutcome
	mu        sync.RWMutex
}

// NewFileHistoryStore 创建文件历史存储
func NewFileHistoryStore(storePath string) (*FileHistoryStore, error) {
	log.Printf("[历史存储] 初始化文件历史存储, 路径: %s", storePath)

	queriesPath := filepath.Join(storePath, "queries")
	if err := os.MkdirAll(queriesPath, 0755); err != nil {
		return nil, fmt.Errorf("创建历史存储目录失败: %w", err)
	}

	s := &FileHistoryStore{
		storePath: storePath,
		outcomes:  make(map[string]*models.QueryOutcome),
	}

	if err := s.loadOutcomes(); err != nil {
		return nil, fmt.Errorf("加载历史记录失败: %w", err)
	}

	log.Printf("[历史存储] 文件历史存储初始化完成, 已加载 %d 条记录", len(s.outcomes))
	return s, nil
}

// StoreOutcome 保存一次查询结果，返回记录ID
func (s *FileHistoryStore) StoreOutcome(outcome *models.QueryOutcome) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveOutcome(outcome); err != nil {
		return "", err
	}

	s.outcomes[outcome.ID] = outcome
	log.Printf("[历史存储] 保存查询结果: ID=%s, 质量=%.2f", outcome.ID, outcome.QualityScore)
	return outcome.ID, nil
}

// FetchRecent 按时间倒序获取最近的查询摘要
func (s *FileHistoryStore) FetchRecent(limit int) ([]*models.QueryOutcomeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sortedOutcomesLocked()
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	summaries := make([]*models.QueryOutcomeSummary, 0, len(sorted))
	for _, o := range sorted {
		summaries = append(summaries, &models.QueryOutcomeSummary{
			ID:           o.ID,
			Query:        o.Query,
			QualityScore: o.QualityScore,
			Timestamp:    o.Timestamp,
		})
	}
	return summaries, nil
}

// SearchByText 按查询文本子串搜索历史记录（不区分大小写），按时间倒序
func (s *FileHistoryStore) SearchByText(substring string, limit int) ([]*models.QueryOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(substring)
	var matched []*models.QueryOutcome
	for _, o := range s.sortedOutcomesLocked() {
		if strings.Contains(strings.ToLower(o.Query), needle) {
			matched = append(matched, o)
			if limit > 0 && len(matched) >= limit {
				break
			}
		}
	}
	return matched, nil
}

// Stats 汇总历史统计
func (s *FileHistoryStore) Stats() (*models.HistoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.HistoryStats{TotalQueries: len(s.outcomes)}
	if len(s.outcomes) == 0 {
		return stats, nil
	}

	qualitySum := 0.0
	for _, o := range s.outcomes {
		stats.TotalClaims += o.ClaimsCount
		stats.TotalSources += o.SourcesCount
		qualitySum += o.QualityScore
	}
	stats.AvgQuality = qualitySum / float64(len(s.outcomes))
	return stats, nil
}

// Close 关闭存储。文件存储写入即落盘，无待刷数据。
func (s *FileHistoryStore) Close() error {
	return nil
}

// sortedOutcomesLocked 返回按时间倒序的记录切片，调用方必须持有读锁
func (s *FileHistoryStore) sortedOutcomesLocked() []*models.QueryOutcome {
	sorted := make([]*models.QueryOutcome, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		sorted = append(sorted, o)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	return sorted
}

// loadOutcomes 从文件加载全部历史记录
func (s *FileHistoryStore) loadOutcomes() error {
	queriesPath := filepath.Join(s.storePath, "queries")
	entries, err := os.ReadDir(queriesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取历史目录失败: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(queriesPath, entry.Name()))
		if err != nil {
			return fmt.Errorf("读取历史文件失败: %w", err)
		}

		var outcome models.QueryOutcome
		if err := json.Unmarshal(data, &outcome); err != nil {
			log.Printf("[历史存储] 警告: 解析历史文件失败, 跳过 %s: %v", entry.Name(), err)
			continue
		}
		s.outcomes[outcome.ID] = &outcome
	}
	return nil
}

// saveOutcome 保存单条记录到文件，调用方必须持有写锁
func (s *FileHistoryStore) saveOutcome(outcome *models.QueryOutcome) error {
	queriesPath := filepath.Join(s.storePath, "queries")
	if err := os.MkdirAll(queriesPath, 0755); err != nil {
		return fmt.Errorf("创建历史目录失败: %w", err)
	}

	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化查询结果失败: %w", err)
	}

	filePath := filepath.Join(queriesPath, outcome.ID+".json")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("写入历史文件失败: %w", err)
	}
	return nil
}
