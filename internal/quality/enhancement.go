package quality

import (
	"strings"

	"github.com/researchkeeper/service/internal/models"
)

// 子指标修正阈值，与总分阈值相互独立
const (
	completenessFloor  = 0.8
	evidenceRatioFloor = 0.5
	structureFloor     = 0.7
)

// BuildEnhancement 根据质量指标生成修正指令文本。
// 所有子指标达标时返回空串，调用方必须将空串视为"不修改下次尝试的提示词"。
// 指令按 完整性→证据→结构 的固定顺序输出，保证可复现。
func BuildEnhancement(metrics *models.QualityMetrics) string {
	var issues []string

	if metrics.Completeness < completenessFloor {
		issues = append(issues, "CRITICAL: The report is missing required sections. It MUST contain '## Overview', '## Key Claims' and '## Sources' sections with real content.")
	}

	if metrics.EvidenceRatio < evidenceRatioFloor {
		issues = append(issues, "Every claim in the report needs supporting evidence. For each claim, cite evidence explicitly (e.g. 'According to ...' or 'Evidence: ...').")
	}

	if metrics.Structure < structureFloor {
		issues = append(issues, "Improve the report structure: use Markdown headers (#, ##) for sections and bullet points (- or *) for lists.")
	}

	if len(issues) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("QUALITY FEEDBACK from the previous attempt:\n")
	for _, issue := range issues {
		sb.WriteString("- ")
		sb.WriteString(issue)
		sb.WriteString("\n")
	}
	sb.WriteString("You MUST address all of the issues above in this attempt.")
	return sb.String()
}
