package quality

import (
	"regexp"
	"strings"

	"github.com/researchkeeper/service/internal/models"
)

var (
	// "Claim "后跟数字，如 "Claim 1: ..."
	claimLinePattern = regexp.MustCompile(`Claim \d`)
	// 行首"数字."编号，如 "1. xxx"
	numberedLinePattern = regexp.MustCompile(`^\d+\.`)
	// 行首数字（来源列表也接受纯编号行）
	leadingDigitPattern = regexp.MustCompile(`^\d`)
)

// 来源兜底标记，按字面出现次数统计
var sourceFallbackMarkers = []string{"http://", "https://", "Encyclopedia", "Journal", "Publication"}

// ExtractCounts 从报告文本抽取主张数与来源数。
// 两套启发式都是尽力而为的文本扫描而非解析器：
// 章节缺失时返回0，永不失败。主路径非零计数永远优先于兜底路径。
func ExtractCounts(report string) *models.ReportCounts {
	lines := strings.Split(report, "\n")

	counts := &models.ReportCounts{
		ClaimsCount:  countClaims(lines),
		SourcesCount: countSources(report, lines),
	}
	return counts
}

// countClaims 主路径统计"Claim N"行；为零时退回统计
// "Key Claims"标题后第一个连续块内的"数字."编号行
func countClaims(lines []string) int {
	count := 0
	for _, line := range lines {
		if claimLinePattern.MatchString(line) {
			count++
		}
	}
	if count > 0 {
		return count
	}

	inClaims := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inClaims {
			if strings.Contains(line, "Key Claims") {
				inClaims = true
			}
			continue
		}
		// 下一个标题标记结束块，只取第一个块
		if strings.Contains(line, "##") {
			break
		}
		if trimmed != "" && numberedLinePattern.MatchString(trimmed) {
			count++
		}
	}
	return count
}

// countSources 统计"Sources"标题后块内的列表行；
// 为零时兜底统计全文的来源字面标记
func countSources(report string, lines []string) int {
	count := 0
	inSources := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inSources {
			if strings.Contains(line, "Sources") {
				inSources = true
			}
			continue
		}
		if strings.Contains(line, "##") {
			break
		}
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "-") || leadingDigitPattern.MatchString(trimmed) {
			count++
		}
	}
	if count > 0 {
		return count
	}

	for _, marker := range sourceFallbackMarkers {
		count += strings.Count(report, marker)
	}
	return count
}
