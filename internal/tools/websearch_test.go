package tools

import (
	"strings"
	"testing"
)

// lite页面的简化HTML结构
const sampleLitePage = `
<html><body><table>
<tr><td>1.</td><td><a class="result-link" href="https://example.org/go">Go Programming Language</a></td></tr>
<tr><td></td><td class="result-snippet">Go is an open source programming language.</td></tr>
<tr><td>2.</td><td><a class="result-link" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.org%2Fconcurrency">Concurrency in Go</a></td></tr>
<tr><td></td><td class="result-snippet">Goroutines and channels explained.</td></tr>
<tr><td>3.</td><td><a class="result-link" href="https://example.org/three">Third Result</a></td></tr>
<tr><td></td><td class="result-snippet">Snippet three.</td></tr>
</table></body></html>`

// TestParseResults 解析结果表格
func TestParseResults(t *testing.T) {
	results, err := parseResults(strings.NewReader(sampleLitePage), 5)
	if err != nil {
		t.Fatalf("parseResults failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	if results[0].Title != "Go Programming Language" {
		t.Errorf("Unexpected title: %q", results[0].Title)
	}
	if results[0].URL != "https://example.org/go" {
		t.Errorf("Unexpected URL: %q", results[0].URL)
	}
	if results[0].Snippet != "Go is an open source programming language." {
		t.Errorf("Unexpected snippet: %q", results[0].Snippet)
	}
}

// TestParseResultsRedirectURL 重定向链接应还原为真实地址
func TestParseResultsRedirectURL(t *testing.T) {
	results, err := parseResults(strings.NewReader(sampleLitePage), 5)
	if err != nil {
		t.Fatalf("parseResults failed: %v", err)
	}

	if results[1].URL != "https://example.org/concurrency" {
		t.Errorf("Expected redirect target, got %q", results[1].URL)
	}
}

// TestParseResultsMaxResults 结果数不超过上限
func TestParseResultsMaxResults(t *testing.T) {
	results, err := parseResults(strings.NewReader(sampleLitePage), 2)
	if err != nil {
		t.Fatalf("parseResults failed: %v", err)
	}

	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
}

// TestParseResultsEmptyPage 空页面返回零结果而非错误
func TestParseResultsEmptyPage(t *testing.T) {
	results, err := parseResults(strings.NewReader("<html><body></body></html>"), 5)
	if err != nil {
		t.Fatalf("parseResults failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}
