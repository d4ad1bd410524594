package api

import (
	"strings"
	"testing"

	"github.com/researchkeeper/service/internal/models"
)

// TestFormatQueryResponseStripsGenericHeader 通用标题被查询专属标题替换
func TestFormatQueryResponseStripsGenericHeader(t *testing.T) {
	meta := &models.ResearchMetadata{QualityScore: 0.85, ClaimsCount: 3, SourcesCount: 2, ExecutionTime: 12.34}

	got := formatQueryResponse("what is Go", "# Research Report\n\n## Overview\nBody.", meta)

	if !strings.HasPrefix(got, "# Research Summary for: what is Go\n\n## Overview") {
		t.Errorf("Expected query-specific title with stripped header, got:\n%s", got)
	}
	if strings.Contains(got, "# Research Report") {
		t.Errorf("Generic header should be removed, got:\n%s", got)
	}
}

// TestFormatQueryResponseFooter 脚注包含质量百分比与统计
func TestFormatQueryResponseFooter(t *testing.T) {
	meta := &models.ResearchMetadata{QualityScore: 0.85, ClaimsCount: 3, SourcesCount: 2, ExecutionTime: 12.34}

	got := formatQueryResponse("q", "## Overview\nBody.", meta)

	for _, want := range []string{
		"**Quality Score:** 85%",
		"**Claims Found:** 3",
		"**Sources Used:** 2",
		"**Execution Time:** 12.3s",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected footer to contain %q, got:\n%s", want, got)
		}
	}
}

// TestFormatQueryResponseKeepsOtherHeaders 非通用标题的报告原样保留
func TestFormatQueryResponseKeepsOtherHeaders(t *testing.T) {
	meta := &models.ResearchMetadata{}

	got := formatQueryResponse("q", "# Custom Title\nBody.", meta)

	if !strings.Contains(got, "# Custom Title\nBody.") {
		t.Errorf("Report without generic header should stay intact, got:\n%s", got)
	}
}
