package models

import "context"

// 向量存储模型 ---------------------------------

// VectorStoreType 向量存储后端类型
type VectorStoreType string

const (
	VectorStoreTypeChromem  VectorStoreType = "chromem" // 内嵌chromem-go存储
	VectorStoreTypeDisabled VectorStoreType = "disabled"
)

// VectorStoreConfig 向量存储配置
type VectorStoreConfig struct {
	Type        VectorStoreType `json:"type"`
	PersistPath string          `json:"persist_path"`
	Collection  string          `json:"collection"`
	Dimension   int             `json:"dimension"`
}

// VectorDocument 待索引的文档
type VectorDocument struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// VectorSearchResult 语义检索结果
type VectorSearchResult struct {
	Document   *VectorDocument `json:"document"`
	Similarity float32         `json:"similarity"` // [0,1]，越大越相似
}

// VectorStore 向量存储接口
type VectorStore interface {
	// IndexDocument 索引一个文档
	IndexDocument(ctx context.Context, doc *VectorDocument) error

	// Search 按查询文本做语义检索
	Search(ctx context.Context, query string, topK int) ([]*VectorSearchResult, error)

	// Count 当前文档数量
	Count() int

	// Close 关闭存储
	Close() error
}

// EmbeddingProvider 文本向量化服务接口
type EmbeddingProvider interface {
	// GenerateEmbedding 为文本生成向量
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GetDimension 向量维度
	GetDimension() int
}
