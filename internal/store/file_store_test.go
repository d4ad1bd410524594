package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchkeeper/service/internal/models"
)

func testOutcome(id, query string, quality float64, claims, sources int, ts time.Time) *models.QueryOutcome {
	return &models.QueryOutcome{
		ID:            id,
		Query:         query,
		Report:        "# Report\n\ncontent",
		QualityScore:  quality,
		ClaimsCount:   claims,
		EvidenceCount: claims,
		SourcesCount:  sources,
		Timestamp:     ts,
	}
}

// TestFileStoreRoundTrip 写入后重新打开存储仍能读回记录
func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileHistoryStore(dir)
	require.NoError(t, err)

	outcome := testOutcome("id-1", "what is Go", 0.85, 3, 2, time.Now())
	id, err := s.StoreOutcome(outcome)
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	require.NoError(t, s.Close())

	// 重新打开，验证落盘
	reopened, err := NewFileHistoryStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.SearchByText("what is", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "what is Go", results[0].Query)
	assert.Equal(t, 0.85, results[0].QualityScore)
	assert.Equal(t, 3, results[0].ClaimsCount)
	assert.Equal(t, 2, results[0].SourcesCount)
}

// TestFileStoreFetchRecentOrder 最近记录按时间倒序且受limit约束
func TestFileStoreFetchRecentOrder(t *testing.T) {
	s, err := NewFileHistoryStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		_, err := s.StoreOutcome(testOutcome(id, "query "+id, 0.7, 1, 1, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	summaries, err := s.FetchRecent(2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "new", summaries[0].ID)
	assert.Equal(t, "mid", summaries[1].ID)
}

// TestFileStoreSearchCaseInsensitive 子串搜索不区分大小写
func TestFileStoreSearchCaseInsensitive(t *testing.T) {
	s, err := NewFileHistoryStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.StoreOutcome(testOutcome("id-1", "History of Quantum Computing", 0.9, 2, 3, time.Now()))
	require.NoError(t, err)

	results, err := s.SearchByText("quantum", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = s.SearchByText("biology", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// TestFileStoreStats 统计口径：总数、主张/来源合计、平均质量
func TestFileStoreStats(t *testing.T) {
	s, err := NewFileHistoryStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalQueries)
	assert.Equal(t, 0.0, stats.AvgQuality)

	_, err = s.StoreOutcome(testOutcome("a", "q1", 0.6, 2, 1, time.Now()))
	require.NoError(t, err)
	_, err = s.StoreOutcome(testOutcome("b", "q2", 0.8, 4, 3, time.Now()))
	require.NoError(t, err)

	stats, err = s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalQueries)
	assert.Equal(t, 6, stats.TotalClaims)
	assert.Equal(t, 4, stats.TotalSources)
	assert.InDelta(t, 0.7, stats.AvgQuality, 1e-9)
}
