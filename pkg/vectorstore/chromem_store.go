// Package vectorstore 提供研究报告的向量索引与语义检索。
package vectorstore

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"

	"github.com/researchkeeper/service/internal/models"
)

// ChromemStore 基于chromem-go的内嵌向量存储。
// 持久化为单个gob文件，嵌入由外部EmbeddingProvider生成。
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     *models.VectorStoreConfig
}

// NewChromemStore 创建chromem向量存储
func NewChromemStore(config *models.VectorStoreConfig, provider models.EmbeddingProvider) (*ChromemStore, error) {
	collectionName := config.Collection
	if collectionName == "" {
		collectionName = "research_reports"
	}

	var db *chromem.DB
	var err error
	if config.PersistPath != "" {
		persistFile := filepath.Join(config.PersistPath, "chromem.gob")
		db, err = chromem.NewPersistentDB(persistFile, false)
		if err != nil {
			return nil, fmt.Errorf("创建持久化向量库失败: %w", err)
		}
		log.Printf("[向量存储] chromem持久化文件: %s", persistFile)
	} else {
		db = chromem.NewDB()
		log.Printf("[向量存储] 使用内存chromem向量库")
	}

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return provider.GenerateEmbedding(ctx, text)
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("创建向量集合失败: %w", err)
	}

	log.Printf("[向量存储] chromem存储初始化完成, 集合: %s, 现有文档: %d",
		collectionName, collection.Count())
	return &ChromemStore{
		db:         db,
		collection: collection,
		config:     config,
	}, nil
}

// IndexDocument 索引一个文档
func (s *ChromemStore) IndexDocument(ctx context.Context, doc *models.VectorDocument) error {
	err := s.collection.AddDocument(ctx, chromem.Document{
		ID:       doc.ID,
		Content:  doc.Content,
		Metadata: doc.Metadata,
	})
	if err != nil {
		return fmt.Errorf("索引文档 %s 失败: %w", doc.ID, err)
	}
	return nil
}

// Search 按查询文本做语义检索
func (s *ChromemStore) Search(ctx context.Context, query string, topK int) ([]*models.VectorSearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	// chromem要求topK不超过集合文档数
	if count := s.collection.Count(); topK > count {
		if count == 0 {
			return nil, nil
		}
		topK = count
	}

	results, err := s.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}

	searchResults := make([]*models.VectorSearchResult, 0, len(results))
	for _, r := range results {
		searchResults = append(searchResults, &models.VectorSearchResult{
			Document: &models.VectorDocument{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: r.Metadata,
			},
			Similarity: r.Similarity,
		})
	}
	return searchResults, nil
}

// Count 当前文档数量
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// Close 关闭存储。chromem在每次写入时自动持久化，无需显式刷盘。
func (s *ChromemStore) Close() error {
	return nil
}
