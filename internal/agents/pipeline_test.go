package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// stubExecutor 记录调用顺序的桩执行器
type stubExecutor struct {
	calls   []StageRole
	outputs map[StageRole]string
	failOn  StageRole
	lastCtx []string // 每次调用收到的upstreamContext
	lastIns []string // 每次调用收到的instructions
}

func (s *stubExecutor) ExecuteStage(ctx context.Context, role StageRole, instructions, query, upstreamContext string) (string, error) {
	s.calls = append(s.calls, role)
	s.lastCtx = append(s.lastCtx, upstreamContext)
	s.lastIns = append(s.lastIns, instructions)

	if role == s.failOn {
		return "", errors.New("stage exploded")
	}
	if out, ok := s.outputs[role]; ok {
		return out, nil
	}
	return fmt.Sprintf("output of %s", role), nil
}

// TestPipelineExecutesStagesInOrder 四阶段严格按固定顺序执行
func TestPipelineExecutesStagesInOrder(t *testing.T) {
	stub := &stubExecutor{}
	pipeline := NewPipeline(stub)

	report, err := pipeline.Execute(context.Background(), "test query", "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	expected := []StageRole{RoleCoordinator, RoleResearcher, RoleAnalyst, RoleWriter}
	if len(stub.calls) != len(expected) {
		t.Fatalf("Expected %d stage calls, got %d", len(expected), len(stub.calls))
	}
	for i, role := range expected {
		if stub.calls[i] != role {
			t.Errorf("Stage %d: expected %s, got %s", i, role, stub.calls[i])
		}
	}

	if report != "output of writer" {
		t.Errorf("Expected writer output as final report, got %q", report)
	}
}

// TestPipelineChainsUpstreamContext 每阶段收到前一阶段的输出
func TestPipelineChainsUpstreamContext(t *testing.T) {
	stub := &stubExecutor{}
	pipeline := NewPipeline(stub)

	if _, err := pipeline.Execute(context.Background(), "q", ""); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if stub.lastCtx[0] != "" {
		t.Errorf("First stage should have empty upstream context, got %q", stub.lastCtx[0])
	}
	if stub.lastCtx[1] != "output of coordinator" {
		t.Errorf("Researcher should receive coordinator output, got %q", stub.lastCtx[1])
	}
	if stub.lastCtx[3] != "output of analyst" {
		t.Errorf("Writer should receive analyst output, got %q", stub.lastCtx[3])
	}
}

// TestPipelineInjectsEnhancement 非空修正指令前置到每个阶段的指令
func TestPipelineInjectsEnhancement(t *testing.T) {
	stub := &stubExecutor{}
	pipeline := NewPipeline(stub)

	enhancement := "QUALITY FEEDBACK: fix the sections."
	if _, err := pipeline.Execute(context.Background(), "q", enhancement); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for i, ins := range stub.lastIns {
		if !strings.HasPrefix(ins, enhancement) {
			t.Errorf("Stage %d instructions missing enhancement prefix:\n%s", i, ins)
		}
	}
}

// TestPipelineEmptyEnhancementLeavesPromptsUntouched 空修正指令不改变提示词
func TestPipelineEmptyEnhancementLeavesPromptsUntouched(t *testing.T) {
	stub := &stubExecutor{}
	pipeline := NewPipeline(stub)

	if _, err := pipeline.Execute(context.Background(), "q", ""); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for i, ins := range stub.lastIns {
		if strings.Contains(ins, "QUALITY FEEDBACK") {
			t.Errorf("Stage %d instructions unexpectedly contain feedback:\n%s", i, ins)
		}
	}
}

// TestPipelineAbortsOnStageFailure 任一阶段失败即中止，后续阶段不执行
func TestPipelineAbortsOnStageFailure(t *testing.T) {
	stub := &stubExecutor{failOn: RoleResearcher}
	pipeline := NewPipeline(stub)

	_, err := pipeline.Execute(context.Background(), "q", "")
	if err == nil {
		t.Fatal("Expected pipeline failure")
	}
	if !strings.Contains(err.Error(), "researcher") {
		t.Errorf("Error should name the failing stage, got: %v", err)
	}

	if len(stub.calls) != 2 {
		t.Errorf("Expected 2 stage calls before abort, got %d", len(stub.calls))
	}
}

// TestPipelineRespectsCancellation 取消的上下文中止整次执行
func TestPipelineRespectsCancellation(t *testing.T) {
	stub := &stubExecutor{}
	pipeline := NewPipeline(stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Execute(ctx, "q", "")
	if err == nil {
		t.Fatal("Expected cancellation error")
	}
	if len(stub.calls) != 0 {
		t.Errorf("Expected no stage calls after cancellation, got %d", len(stub.calls))
	}
}
