// Package embedding 封装OpenAI兼容的文本嵌入API客户端。
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// 默认向量维度（text-embedding-3-small）
const DefaultDimension = 1536

// Service OpenAI兼容的嵌入服务客户端
type Service struct {
	apiURL    string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

// NewService 创建嵌入服务客户端
func NewService(apiURL, apiKey, model string, dimension int) *Service {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Service{
		apiURL:    apiURL,
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// GenerateEmbedding 为文本生成向量
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(map[string]interface{}{
		"model":           s.model,
		"input":           []string{text},
		"encoding_format": "float",
	})
	if err != nil {
		return nil, fmt.Errorf("序列化嵌入请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("创建嵌入请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("嵌入API请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取嵌入响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[嵌入服务] 错误: API返回状态码 %d: %s", resp.StatusCode, string(respBody))
		return nil, fmt.Errorf("嵌入API返回错误状态码: %d", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("解析嵌入响应失败: %w", err)
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("嵌入API返回空结果")
	}

	return result.Data[0].Embedding, nil
}

// GetDimension 向量维度
func (s *Service) GetDimension() int {
	return s.dimension
}
