package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchkeeper/service/internal/models"
)

// fakeEmbedder 确定性的本地嵌入桩：按词表命中计数构造向量
type fakeEmbedder struct{}

var vocabulary = []string{"go", "rust", "python", "database", "network"}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(vocabulary))
	for i, word := range vocabulary {
		for j := 0; j+len(word) <= len(text); j++ {
			if text[j:j+len(word)] == word {
				vec[i]++
			}
		}
	}
	// 保证非零向量
	vec[0] += 0.01
	return vec, nil
}

func (f *fakeEmbedder) GetDimension() int { return len(vocabulary) }

func chromemConfig() *models.VectorStoreConfig {
	return &models.VectorStoreConfig{
		Type:       models.VectorStoreTypeChromem,
		Collection: "test_reports",
	}
}

// TestChromemStoreIndexAndSearch 索引后能按语义相近度检索
func TestChromemStoreIndexAndSearch(t *testing.T) {
	s, err := NewChromemStore(chromemConfig(), &fakeEmbedder{})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	docs := []*models.VectorDocument{
		{ID: "d1", Content: "go network service report", Metadata: map[string]string{"query": "go"}},
		{ID: "d2", Content: "python database tutorial", Metadata: map[string]string{"query": "python"}},
	}
	for _, doc := range docs {
		require.NoError(t, s.IndexDocument(ctx, doc))
	}
	assert.Equal(t, 2, s.Count())

	results, err := s.Search(ctx, "go network", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].Document.ID)
}

// TestChromemStoreSearchEmpty 空集合检索返回空结果而非错误
func TestChromemStoreSearchEmpty(t *testing.T) {
	s, err := NewChromemStore(chromemConfig(), &fakeEmbedder{})
	require.NoError(t, err)
	defer s.Close()

	results, err := s.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// TestChromemStoreTopKClamped topK大于文档数时被收敛到文档数
func TestChromemStoreTopKClamped(t *testing.T) {
	s, err := NewChromemStore(chromemConfig(), &fakeEmbedder{})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.IndexDocument(ctx, &models.VectorDocument{ID: "only", Content: "go report"}))

	results, err := s.Search(ctx, "go", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

// TestFactoryDisabled disabled配置返回nil存储
func TestFactoryDisabled(t *testing.T) {
	store, err := CreateVectorStore(&models.VectorStoreConfig{Type: models.VectorStoreTypeDisabled}, nil)
	require.NoError(t, err)
	assert.Nil(t, store)
}

// TestParseVectorStoreType 类型解析与回退
func TestParseVectorStoreType(t *testing.T) {
	assert.Equal(t, models.VectorStoreTypeChromem, ParseVectorStoreType("chromem"))
	assert.Equal(t, models.VectorStoreTypeChromem, ParseVectorStoreType(" Chromem "))
	assert.Equal(t, models.VectorStoreTypeDisabled, ParseVectorStoreType(""))
	assert.Equal(t, models.VectorStoreTypeDisabled, ParseVectorStoreType("none"))
	assert.Equal(t, models.VectorStoreTypeDisabled, ParseVectorStoreType("bogus"))
}
