package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// DeepSeek客户端实现
// =============================================================================

// DeepSeekClient DeepSeek适配器（API与OpenAI兼容）
type DeepSeekClient struct {
	*BaseAdapter
	apiKey  string
	baseURL string
	model   string
}

// DeepSeekRequest DeepSeek请求格式
type DeepSeekRequest struct {
	Model       string            `json:"model"`
	Messages    []DeepSeekMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

// DeepSeekMessage DeepSeek消息格式
type DeepSeekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DeepSeekResponse DeepSeek响应格式
type DeepSeekResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// DeepSeekErrorResponse DeepSeek错误响应
type DeepSeekErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewDeepSeekClient 创建DeepSeek客户端
func NewDeepSeekClient(config *LLMConfig) (LLMClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("DeepSeek API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}

	model := config.Model
	if model == "" {
		model = "deepseek-chat"
	}

	client := &DeepSeekClient{
		BaseAdapter: NewBaseAdapter(ProviderDeepSeek, config),
		apiKey:      config.APIKey,
		baseURL:     baseURL,
		model:       model,
	}

	client.SetCapabilities(&LLMCapabilities{
		MaxTokens:        8192,
		SupportedFormats: []string{"text", "json"},
		Models:           []string{"deepseek-chat", "deepseek-reasoner"},
	})

	return client, nil
}

// Complete 完成对话
func (dc *DeepSeekClient) Complete(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	startTime := time.Now()

	if err := dc.CheckRateLimit(ctx); err != nil {
		return nil, err
	}

	if err := dc.CheckCircuitBreaker(); err != nil {
		return nil, err
	}

	dsReq := dc.convertToDeepSeekFormat(req)
	resp, err := dc.sendRequest(ctx, dsReq)
	if err != nil {
		dc.RecordFailure()
		return nil, err
	}

	dc.RecordSuccess()
	return dc.convertFromDeepSeekFormat(resp, time.Since(startTime)), nil
}

// HealthCheck 健康检查
func (dc *DeepSeekClient) HealthCheck(ctx context.Context) error {
	req := &LLMRequest{
		Prompt:      "Hello",
		MaxTokens:   1,
		Temperature: 0,
	}

	_, err := dc.Complete(ctx, req)
	return err
}

// GetModel 获取模型名称
func (dc *DeepSeekClient) GetModel() string {
	return dc.model
}

// convertToDeepSeekFormat 转换为DeepSeek格式
func (dc *DeepSeekClient) convertToDeepSeekFormat(req *LLMRequest) *DeepSeekRequest {
	messages := []DeepSeekMessage{}

	if req.SystemPrompt != "" {
		messages = append(messages, DeepSeekMessage{
			Role:    "system",
			Content: req.SystemPrompt,
		})
	}

	messages = append(messages, DeepSeekMessage{
		Role:    "user",
		Content: req.Prompt,
	})

	model := req.Model
	if model == "" {
		model = dc.model
	}

	return &DeepSeekRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

// convertFromDeepSeekFormat 转换DeepSeek响应格式
func (dc *DeepSeekClient) convertFromDeepSeekFormat(resp *DeepSeekResponse, duration time.Duration) *LLMResponse {
	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &LLMResponse{
		Content:    content,
		TokensUsed: resp.Usage.TotalTokens,
		Model:      resp.Model,
		Provider:   ProviderDeepSeek,
		Duration:   duration,
	}
}

// sendRequest 发送HTTP请求
func (dc *DeepSeekClient) sendRequest(ctx context.Context, req *DeepSeekRequest) (*DeepSeekResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", dc.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+dc.apiKey)

	httpResp, err := dc.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var errorResp DeepSeekErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, &LLMError{
				Provider:  ProviderDeepSeek,
				Code:      errorResp.Error.Code,
				Message:   errorResp.Error.Message,
				Retryable: httpResp.StatusCode >= 500,
			}
		}
		return nil, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp DeepSeekResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}

	return &resp, nil
}
