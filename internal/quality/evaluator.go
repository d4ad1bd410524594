// Package quality 实现报告质量评估的确定性规则：
// 奖励评估（Evaluate）、修正指令生成（BuildEnhancement）与统计抽取（ExtractCounts）。
// 所有函数均为纯函数，相同输入永远产生相同输出，不依赖任何外部状态。
package quality

import (
	"strings"

	"github.com/researchkeeper/service/internal/models"
)

// 评分权重，与各子指标的定义绑定，不可配置
const (
	weightCompleteness  = 0.4
	weightStructure     = 0.3
	weightEvidenceRatio = 0.3
)

// 必需章节标记，按子串匹配（"Claims"同样命中"Key Claims"）
var requiredSections = []string{"Overview", "Claims", "Sources"}

// Evaluate 对报告文本计算质量指标，总函数，永不失败。
// 缺失预期内容只会得到低分，而不是错误。
func Evaluate(report string) *models.QualityMetrics {
	metrics := &models.QualityMetrics{}

	// 完整性：必需章节覆盖率
	found := 0
	for _, section := range requiredSections {
		if strings.Contains(report, section) {
			found++
		}
	}
	metrics.Completeness = float64(found) / float64(len(requiredSections))

	// 结构性：标题密度与列表密度两个布尔信号的均值
	hasHeaders := strings.Count(report, "#") >= 3
	hasBullets := strings.Count(report, "*") >= 5 || strings.Count(report, "-") >= 5
	metrics.Structure = (boolToFloat(hasHeaders) + boolToFloat(hasBullets)) / 2

	// 证据率：证据信号与主张信号之比，上限1.0；
	// 无主张信号时取0.5，既不奖励也不惩罚缺失
	lower := strings.ToLower(report)
	claimSignal := strings.Count(lower, "claim")
	evidenceSignal := strings.Count(lower, "evidence") + strings.Count(lower, "according to")
	if claimSignal > 0 {
		ratio := float64(evidenceSignal) / float64(claimSignal)
		if ratio > 1.0 {
			ratio = 1.0
		}
		metrics.EvidenceRatio = ratio
	} else {
		metrics.EvidenceRatio = 0.5
	}

	metrics.Overall = metrics.Completeness*weightCompleteness +
		metrics.Structure*weightStructure +
		metrics.EvidenceRatio*weightEvidenceRatio

	return metrics
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
