package quality

import (
	"math"
	"strings"
	"testing"
)

// =============================================================================
// 奖励评估测试
// =============================================================================

const fullQualityReport = `# Research Report

## Overview
This report covers the topic in depth.

## Key Claims
* Claim 1: the first claim holds, according to recent research.
* Claim 2: the second claim holds. Evidence: survey data.

## Supporting Evidence
* According to multiple sources the findings hold.
* Evidence is cited for each item above.

## Sources
* https://example.org/a
* https://example.org/b
`

// TestEvaluateDeterministic 相同输入必须产生完全一致的指标
func TestEvaluateDeterministic(t *testing.T) {
	inputs := []string{"", "plain text", fullQualityReport}

	for _, input := range inputs {
		first := Evaluate(input)
		second := Evaluate(input)

		if *first != *second {
			t.Errorf("Evaluate not deterministic for input %q: %+v vs %+v", input, first, second)
		}
	}
}

// TestEvaluateEmptyReport 空报告的边界值：0.3*0.5 = 0.15
func TestEvaluateEmptyReport(t *testing.T) {
	metrics := Evaluate("")

	if metrics.Completeness != 0 {
		t.Errorf("Expected completeness 0, got %f", metrics.Completeness)
	}
	if metrics.Structure != 0 {
		t.Errorf("Expected structure 0, got %f", metrics.Structure)
	}
	if metrics.EvidenceRatio != 0.5 {
		t.Errorf("Expected evidence_ratio 0.5, got %f", metrics.EvidenceRatio)
	}
	if math.Abs(metrics.Overall-0.15) > 1e-9 {
		t.Errorf("Expected overall 0.15, got %f", metrics.Overall)
	}
}

// TestEvaluateFullQualityReport 完整报告应得到满分
func TestEvaluateFullQualityReport(t *testing.T) {
	metrics := Evaluate(fullQualityReport)

	if metrics.Completeness != 1.0 {
		t.Errorf("Expected completeness 1.0, got %f", metrics.Completeness)
	}
	if metrics.Structure != 1.0 {
		t.Errorf("Expected structure 1.0, got %f", metrics.Structure)
	}
	if metrics.EvidenceRatio != 1.0 {
		t.Errorf("Expected evidence_ratio 1.0, got %f", metrics.EvidenceRatio)
	}
	if metrics.Overall != 1.0 {
		t.Errorf("Expected overall 1.0, got %f", metrics.Overall)
	}
}

// TestEvaluateOverallBounds 任意输入下总分必须落在[0,1]
func TestEvaluateOverallBounds(t *testing.T) {
	inputs := []string{
		"",
		"claim claim claim claim",
		"evidence evidence evidence according to according to",
		strings.Repeat("# ", 100),
		strings.Repeat("- bullet\n", 100),
		"Overview Claims Sources",
		fullQualityReport,
	}

	for _, input := range inputs {
		metrics := Evaluate(input)
		if metrics.Overall < 0 || metrics.Overall > 1 {
			t.Errorf("Overall %f out of [0,1] for input %q", metrics.Overall, input)
		}
		if metrics.EvidenceRatio < 0 || metrics.EvidenceRatio > 1 {
			t.Errorf("EvidenceRatio %f out of [0,1] for input %q", metrics.EvidenceRatio, input)
		}
	}
}

// TestEvaluateStructureLevels 结构分只能取 {0, 0.5, 1.0}
func TestEvaluateStructureLevels(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected float64
	}{
		{"no structure", "plain text", 0},
		{"only headers", "# a\n# b\n# c", 0.5},
		{"only bullets", "* a\n* b\n* c\n* d\n* e", 0.5},
		{"headers and bullets", "# a\n# b\n# c\n* 1\n* 2\n* 3\n* 4\n* 5", 1.0},
	}

	for _, tc := range cases {
		metrics := Evaluate(tc.input)
		if metrics.Structure != tc.expected {
			t.Errorf("%s: expected structure %f, got %f", tc.name, tc.expected, metrics.Structure)
		}
	}
}

// TestEvaluateEvidenceRatioCapped 证据多于主张时比值封顶为1
func TestEvaluateEvidenceRatioCapped(t *testing.T) {
	metrics := Evaluate("claim. evidence evidence evidence according to the study.")
	if metrics.EvidenceRatio != 1.0 {
		t.Errorf("Expected capped evidence_ratio 1.0, got %f", metrics.EvidenceRatio)
	}
}
