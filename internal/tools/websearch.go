// Package tools 提供agent流水线可用的外部工具。
package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// DuckDuckGo lite页面对爬取更稳定
const ddgLiteEndpoint = "https://lite.duckduckgo.com/lite/"

// 全局1 QPS限流，跨实例共享，避免被搜索端封禁
var ddgLimiter = rate.NewLimiter(rate.Every(time.Second), 1)

// SearchResult 单条检索结果
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchTool DuckDuckGo网络检索工具
type WebSearchTool struct {
	client *http.Client
}

// NewWebSearchTool 创建网络检索工具
func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewWebSearchToolWithClient 使用自定义HTTP客户端创建检索工具
func NewWebSearchToolWithClient(client *http.Client) *WebSearchTool {
	return &WebSearchTool{client: client}
}

// Search 执行检索并返回格式化的结果文本。
// 无结果时返回空串而非错误，由调用方决定降级策略。
func (w *WebSearchTool) Search(ctx context.Context, query string, maxResults int) (string, error) {
	results, err := w.SearchStructured(ctx, query, maxResults)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "--- Result %d ---\nTitle: %s\nURL: %s\nSnippet: %s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return sb.String(), nil
}

// SearchStructured 执行检索并返回结构化结果
func (w *WebSearchTool) SearchStructured(ctx context.Context, query string, maxResults int) ([]*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	if err := ddgLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	formData := url.Values{}
	formData.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ddgLiteEndpoint, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	return parseResults(resp.Body, maxResults)
}

// parseResults 解析lite页面的结果表格。
// 结构：result-link行(标题+链接) → result-snippet行(摘要)。
func parseResults(body io.Reader, maxResults int) ([]*SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse search page failed: %w", err)
	}

	var results []*SearchResult
	doc.Find("a.result-link").EachWithBreak(func(i int, link *goquery.Selection) bool {
		if len(results) >= maxResults {
			return false
		}

		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if href == "" || title == "" {
			return true
		}

		// 摘要在结果链接所在行的下一行
		snippet := ""
		row := link.Closest("tr")
		if next := row.Next(); next.Length() > 0 {
			snippet = strings.TrimSpace(next.Find("td.result-snippet").Text())
			if snippet == "" {
				snippet = strings.TrimSpace(next.Text())
			}
		}

		results = append(results, &SearchResult{
			Title:   title,
			URL:     normalizeDDGURL(href),
			Snippet: snippet,
		})
		return true
	})

	return results, nil
}

// normalizeDDGURL 处理DuckDuckGo的重定向链接，提取真实目标地址
func normalizeDDGURL(href string) string {
	if strings.HasPrefix(href, "//duckduckgo.com/l/") || strings.Contains(href, "/l/?uddg=") {
		if u, err := url.Parse(href); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				if decoded, err := url.QueryUnescape(target); err == nil {
					return decoded
				}
				return target
			}
		}
	}
	return href
}
