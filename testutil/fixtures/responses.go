// =============================================================================
// 📦 测试数据工厂 - LLM 响应与研究结果测试数据
// =============================================================================
// 提供预定义的 LLM 响应和研究代理结果，用于测试
// =============================================================================
package fixtures

import (
	"strings"

	"github.com/BaSui01/agentsbackend/agent"
	"github.com/BaSui01/agentsbackend/llm"
)

// =============================================================================
// 🎯 ChatResponse 工厂
// =============================================================================

// SimpleResponse 返回简单的文本响应
func SimpleResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:           "resp-001",
		Model:        "gpt-4o-mini",
		Content:      content,
		FinishReason: "stop",
		Usage: llm.ChatUsage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
	}
}

// =============================================================================
// 🔬 研究结果工厂
// =============================================================================

// ResearchNotes 返回一份研究笔记样例
func ResearchNotes() string {
	return strings.Join([]string{
		"1. Solid-state electrolytes replace flammable liquid electrolytes.",
		"2. Sulfide electrolytes reach ionic conductivity comparable to liquids.",
		"3. Dendrite growth at the lithium anode remains an open problem.",
	}, "\n")
}

// ResearchResult 返回一份研究结果样例
func ResearchResult() *agent.Result {
	return &agent.Result{
		ResearchSummary:   "Solid-state batteries promise higher safety and energy density, but dendrites remain unsolved.",
		ResearchDocuments: ResearchNotes(),
	}
}

// SummaryTokens 返回一组摘要 Token 样例
func SummaryTokens() []string {
	return []string{"Solid", "-state", " batteries", " are", " promising", "."}
}
