// Package agents 实现四阶段研究流水线：
// 协调(coordinator) → 检索(researcher) → 分析(analyst) → 撰写(writer)。
// 每个阶段是一次对LLM的不透明调用，阶段间严格串行，
// 后一阶段依赖前一阶段的输出作为上下文。
package agents

import (
	"fmt"
	"strings"
)

// StageRole 流水线阶段角色
type StageRole string

const (
	RoleCoordinator StageRole = "coordinator"
	RoleResearcher  StageRole = "researcher"
	RoleAnalyst     StageRole = "analyst"
	RoleWriter      StageRole = "writer"
)

// PipelineStages 流水线阶段的固定执行顺序
var PipelineStages = []StageRole{RoleCoordinator, RoleResearcher, RoleAnalyst, RoleWriter}

// 各角色的系统提示词
var roleSystemPrompts = map[StageRole]string{
	RoleCoordinator: "You are a senior research coordinator. You plan the research flow, " +
		"decide what the team should look for, and define what a good final answer must contain. " +
		"Focus on clarity and completeness.",

	RoleResearcher: "You are an information retrieval specialist. You gather relevant, " +
		"credible information for the given query. Focus on authority, clarity, and " +
		"diversity of sources. Always include titles, short snippets and URLs when available.",

	RoleAnalyst: "You are a research analyst skilled in critical thinking and evidence " +
		"evaluation. You turn raw research into structured insights: a concise summary, " +
		"key claims, and supporting evidence for each claim.",

	RoleWriter: "You are a technical writer specializing in evidence-based reports. " +
		"You turn structured analysis into a reader-friendly Markdown document with " +
		"headings, bullet points, and a sources section.",
}

// 各角色的任务指令模板，%s为查询文本
var roleInstructions = map[StageRole]string{
	RoleCoordinator: `You are coordinating a research pipeline for the user query: "%s".
Make a short plan for how the team should proceed: research, analysis, then writing.
Describe what to look for during research and what a good final answer should contain.`,

	RoleResearcher: `Gather 3-7 relevant snippets for the query: "%s".
Requirements:
- Find credible sources and extract key information from each
- Include titles, short summaries, and URLs when possible
Return a bullet-style list of sources.`,

	RoleAnalyst: `Analyze the research results for: "%s".
Requirements:
1) Produce a concise summary (4-6 sentences).
2) Extract 2-5 key claims, numbered as "Claim 1:", "Claim 2:", ...
3) For each claim, identify supporting evidence.
Return structured text with sections: Summary, Claims, Evidence.`,

	RoleWriter: `Using the structured analysis for "%s", write the final report in Markdown with
these sections:
- ## Overview (3-4 sentences)
- ## Key Claims (numbered, with supporting evidence for each)
- ## Sources (bulleted list)
Make the tone clear, helpful, and concise.`,
}

// BuildStageInstructions 构造某一阶段的完整指令。
// enhancement非空时前置到指令之前（质量反馈重试）。
func BuildStageInstructions(role StageRole, query, enhancement string) string {
	instructions := fmt.Sprintf(roleInstructions[role], query)

	if enhancement != "" {
		return enhancement + "\n\n" + instructions
	}
	return instructions
}

// SystemPromptFor 获取角色的系统提示词
func SystemPromptFor(role StageRole) string {
	return roleSystemPrompts[role]
}

// BuildStagePrompt 拼装用户提示词：指令 + 上游阶段输出
func BuildStagePrompt(instructions, upstreamContext string) string {
	if strings.TrimSpace(upstreamContext) == "" {
		return instructions
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n--- Context from the previous stage ---\n")
	sb.WriteString(upstreamContext)
	return sb.String()
}
