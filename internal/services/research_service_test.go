package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/researchkeeper/service/internal/agents"
	"github.com/researchkeeper/service/internal/models"
)

// 满分报告：三个必需章节、3+个标题、5+个列表项、证据信号≥主张信号
const goodReport = `# Report

## Overview
Solid overview of the topic.

## Key Claims
* Claim 1: finding one, according to recent research.
* Claim 2: finding two. Evidence: survey data.

## Supporting Evidence
* According to multiple sources the findings hold.
* Evidence is cited for each item above.

## Sources
* https://example.org/a
* https://example.org/b
`

// scriptedExecutor 按调用轮次返回脚本化的writer输出
type scriptedExecutor struct {
	reports      []string // 第i次流水线执行时writer阶段的输出
	execution    int
	failStage    agents.StageRole
	enhancements []string // 每次流水线执行收到的enhancement（以coordinator阶段为准）
}

func (s *scriptedExecutor) ExecuteStage(ctx context.Context, role agents.StageRole, instructions, query, upstreamContext string) (string, error) {
	if role == s.failStage {
		return "", errors.New("boom")
	}

	if role == agents.RoleCoordinator {
		enhancement := ""
		if idx := strings.Index(instructions, "You are coordinating"); idx > 0 {
			enhancement = strings.TrimSpace(instructions[:idx])
		}
		s.enhancements = append(s.enhancements, enhancement)
	}

	if role == agents.RoleWriter {
		report := ""
		if s.execution < len(s.reports) {
			report = s.reports[s.execution]
		} else if len(s.reports) > 0 {
			report = s.reports[len(s.reports)-1]
		}
		s.execution++
		return report, nil
	}
	return "intermediate output", nil
}

// stubHistoryStore 内存历史存储桩
type stubHistoryStore struct {
	outcomes []*models.QueryOutcome
	failing  bool
}

func (s *stubHistoryStore) StoreOutcome(outcome *models.QueryOutcome) (string, error) {
	if s.failing {
		return "", errors.New("store unavailable")
	}
	s.outcomes = append(s.outcomes, outcome)
	return outcome.ID, nil
}

func (s *stubHistoryStore) FetchRecent(limit int) ([]*models.QueryOutcomeSummary, error) {
	return nil, nil
}

func (s *stubHistoryStore) SearchByText(substring string, limit int) ([]*models.QueryOutcome, error) {
	return nil, nil
}

func (s *stubHistoryStore) Stats() (*models.HistoryStats, error) {
	return &models.HistoryStats{TotalQueries: len(s.outcomes)}, nil
}

func (s *stubHistoryStore) Close() error { return nil }

func newTestService(executor agents.StageExecutor, history models.HistoryStore) *ResearchService {
	return NewResearchService(agents.NewPipeline(executor), history, nil, NewPerformanceTracker())
}

// TestRunSinglePassWhenQualityMet 首次达标时只执行一次流水线
func TestRunSinglePassWhenQualityMet(t *testing.T) {
	executor := &scriptedExecutor{reports: []string{goodReport}}
	history := &stubHistoryStore{}
	svc := newTestService(executor, history)

	resp, err := svc.Run(context.Background(), &models.ResearchRequest{Query: "what is Go"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !resp.Success {
		t.Error("Expected success")
	}
	if executor.execution != 1 {
		t.Errorf("Expected exactly 1 pipeline execution, got %d", executor.execution)
	}
	if resp.Metadata.RetryCount != 0 {
		t.Errorf("Expected 0 retries, got %d", resp.Metadata.RetryCount)
	}
	if len(resp.Metadata.Improvements) != 0 {
		t.Errorf("Expected no improvements, got %d", len(resp.Metadata.Improvements))
	}
	if resp.Metadata.QualityScore != 1.0 {
		t.Errorf("Expected quality 1.0, got %f", resp.Metadata.QualityScore)
	}
	if len(history.outcomes) != 1 {
		t.Errorf("Expected 1 stored outcome, got %d", len(history.outcomes))
	}
}

// TestRunImprovementsSerializeAsEmptyArray 无重试时improvements序列化为[]而非null
func TestRunImprovementsSerializeAsEmptyArray(t *testing.T) {
	executor := &scriptedExecutor{reports: []string{goodReport}}
	svc := newTestService(executor, &stubHistoryStore{})

	resp, err := svc.Run(context.Background(), &models.ResearchRequest{Query: "what is Go"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Metadata.Improvements == nil {
		t.Fatal("Expected non-nil improvements slice")
	}
	data, err := json.Marshal(resp.Metadata)
	if err != nil {
		t.Fatalf("Marshal metadata: %v", err)
	}
	if !strings.Contains(string(data), `"improvements":[]`) {
		t.Errorf("Expected empty improvements array, got %s", data)
	}
}

// TestRunRetriesExhaustedIsSuccess 始终空报告：用尽重试仍是成功终态
func TestRunRetriesExhaustedIsSuccess(t *testing.T) {
	executor := &scriptedExecutor{reports: []string{"", "", ""}}
	svc := newTestService(executor, &stubHistoryStore{})

	resp, err := svc.Run(context.Background(), &models.ResearchRequest{Query: "hopeless"})
	if err != nil {
		t.Fatalf("Exhausted retries must not be an error, got: %v", err)
	}

	if !resp.Success {
		t.Error("Expected success despite low quality")
	}
	if resp.Metadata.RetryCount != DefaultMaxRetries {
		t.Errorf("Expected %d retries, got %d", DefaultMaxRetries, resp.Metadata.RetryCount)
	}
	if len(resp.Metadata.Improvements) != resp.Metadata.RetryCount {
		t.Errorf("Invariant violated: %d improvements vs %d retries",
			len(resp.Metadata.Improvements), resp.Metadata.RetryCount)
	}
	if executor.execution != 1+DefaultMaxRetries {
		t.Errorf("Expected %d pipeline executions, got %d", 1+DefaultMaxRetries, executor.execution)
	}
}

// TestRunInjectsEnhancementOnRetry 重试时修正指令注入提示词，首次为空
func TestRunInjectsEnhancementOnRetry(t *testing.T) {
	executor := &scriptedExecutor{reports: []string{"", goodReport}}
	svc := newTestService(executor, &stubHistoryStore{})

	resp, err := svc.Run(context.Background(), &models.ResearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Metadata.RetryCount != 1 {
		t.Fatalf("Expected 1 retry, got %d", resp.Metadata.RetryCount)
	}
	if executor.enhancements[0] != "" {
		t.Errorf("First attempt should have no enhancement, got %q", executor.enhancements[0])
	}
	if !strings.Contains(executor.enhancements[1], "QUALITY FEEDBACK") {
		t.Errorf("Retry should carry quality feedback, got %q", executor.enhancements[1])
	}

	step := resp.Metadata.Improvements[0]
	if step.RetryIndex != 1 {
		t.Errorf("Expected retry index 1, got %d", step.RetryIndex)
	}
	if step.PreviousQuality != 0.15 {
		t.Errorf("Expected previous quality 0.15 (empty report), got %f", step.PreviousQuality)
	}
}

// TestRunLatestAttemptWins 后一次尝试得分更低也采用最新结果，不回退
func TestRunLatestAttemptWins(t *testing.T) {
	// 第一次: 无章节但有结构和证据 → 低于阈值; 之后: 完全空 → 更低
	mediocre := strings.Repeat("# h\n", 3) + strings.Repeat("* item\n", 5) +
		"claim and evidence and evidence\n"
	executor := &scriptedExecutor{reports: []string{mediocre, "", ""}}
	svc := newTestService(executor, &stubHistoryStore{})

	resp, err := svc.Run(context.Background(), &models.ResearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 终态是最后一次(空报告)的结果
	if resp.Report != "" {
		t.Errorf("Expected latest (empty) report to win, got %q", resp.Report)
	}
	if resp.Metadata.QualityScore != 0.15 {
		t.Errorf("Expected final quality 0.15, got %f", resp.Metadata.QualityScore)
	}
	if resp.Metadata.Improved {
		t.Error("Quality went down, improved must be false")
	}
}

// TestRunStageFailureFailsRun 阶段失败使整次Run失败，不保留部分状态
func TestRunStageFailureFailsRun(t *testing.T) {
	executor := &scriptedExecutor{failStage: agents.RoleAnalyst}
	history := &stubHistoryStore{}
	svc := newTestService(executor, history)

	_, err := svc.Run(context.Background(), &models.ResearchRequest{Query: "q"})
	if err == nil {
		t.Fatal("Expected run failure")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Underlying message must be preserved, got: %v", err)
	}
	if len(history.outcomes) != 0 {
		t.Error("Failed run must not persist outcomes")
	}
	if svc.Tracker().Stats().TotalQueries != 0 {
		t.Error("Failed run must not be tracked")
	}
}

// TestRunPersistenceFailureDegrades 持久化失败不影响成功结果
func TestRunPersistenceFailureDegrades(t *testing.T) {
	executor := &scriptedExecutor{reports: []string{goodReport}}
	svc := newTestService(executor, &stubHistoryStore{failing: true})

	resp, err := svc.Run(context.Background(), &models.ResearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Persistence failure must not fail the run: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success despite persistence failure")
	}
}

// TestRunRetryCountNeverExceedsMax 重试次数永不超过上限
func TestRunRetryCountNeverExceedsMax(t *testing.T) {
	executor := &scriptedExecutor{reports: []string{""}}
	svc := newTestService(executor, &stubHistoryStore{})
	svc.SetMaxRetries(1)

	resp, err := svc.Run(context.Background(), &models.ResearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if resp.Metadata.RetryCount > 1 {
		t.Errorf("Retry count %d exceeds max 1", resp.Metadata.RetryCount)
	}
	if executor.execution != 2 {
		t.Errorf("Expected 2 executions, got %d", executor.execution)
	}
}

// TestRunRecordsTracker 成功Run在追踪器中追加一条记录
func TestRunRecordsTracker(t *testing.T) {
	executor := &scriptedExecutor{reports: []string{goodReport}}
	svc := newTestService(executor, &stubHistoryStore{})

	if _, err := svc.Run(context.Background(), &models.ResearchRequest{Query: "q"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stats := svc.Tracker().Stats()
	if stats.TotalQueries != 1 {
		t.Errorf("Expected 1 tracked query, got %d", stats.TotalQueries)
	}
	if stats.AverageQuality != 1.0 {
		t.Errorf("Expected average quality 1.0, got %f", stats.AverageQuality)
	}
}
