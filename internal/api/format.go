package api

import (
	"fmt"
	"strings"

	"github.com/researchkeeper/service/internal/models"
)

// 写作阶段常见的通用标题，前端展示时替换为查询专属标题
const genericReportHeader = "# Research Report"

// formatQueryResponse 将报告包装为前端展示用的Markdown块：
// 去掉通用标题，加上查询专属标题与质量指标脚注。
func formatQueryResponse(query, report string, meta *models.ResearchMetadata) string {
	if strings.HasPrefix(report, genericReportHeader) {
		report = strings.TrimSpace(strings.Replace(report, genericReportHeader, "", 1))
	}

	var sb strings.Builder
	sb.WriteString("# Research Summary for: ")
	sb.WriteString(query)
	sb.WriteString("\n\n")
	sb.WriteString(report)
	sb.WriteString("\n\n---\n\n")
	fmt.Fprintf(&sb, "**Quality Score:** %.0f%%  \n", meta.QualityScore*100)
	fmt.Fprintf(&sb, "**Claims Found:** %d  \n", meta.ClaimsCount)
	fmt.Fprintf(&sb, "**Sources Used:** %d  \n", meta.SourcesCount)
	fmt.Fprintf(&sb, "**Execution Time:** %.1fs\n", meta.ExecutionTime)
	return sb.String()
}
