package vectorstore

import (
	"fmt"
	"log"
	"strings"

	"github.com/researchkeeper/service/internal/models"
)

// CreateVectorStore 按配置创建向量存储实例。
// disabled类型返回nil存储，调用方据此跳过向量索引。
func CreateVectorStore(config *models.VectorStoreConfig, provider models.EmbeddingProvider) (models.VectorStore, error) {
	switch config.Type {
	case models.VectorStoreTypeChromem:
		if provider == nil {
			return nil, fmt.Errorf("chromem向量存储需要嵌入服务")
		}
		return NewChromemStore(config, provider)
	case models.VectorStoreTypeDisabled:
		log.Printf("[向量存储工厂] 向量存储已禁用")
		return nil, nil
	default:
		return nil, fmt.Errorf("不支持的向量存储类型: %s", config.Type)
	}
}

// ParseVectorStoreType 解析向量存储类型字符串，未知值回退到disabled
func ParseVectorStoreType(value string) models.VectorStoreType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "chromem":
		return models.VectorStoreTypeChromem
	case "", "disabled", "none":
		return models.VectorStoreTypeDisabled
	default:
		log.Printf("[向量存储工厂] 未知存储类型 '%s', 回退到disabled", value)
		return models.VectorStoreTypeDisabled
	}
}
