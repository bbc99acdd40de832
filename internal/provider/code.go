// ABOUTME: ProviderCode and AgentCode enums for response-mode selection
// ABOUTME: A ProviderCode names which AI backend answers a turn

package provider

// Code selects which AI backend/mode answers a turn.
type Code string

const (
	CodeSearch       Code = "SEARCH"         // live web search grounding
	CodeCanvas       Code = "CANVAS"         // in-place canvas edit
	CodeAgent        Code = "AGENT"          // pro-agent task handler
	CodeCustomGPTDoc Code = "CUSTOM_GPT_DOC" // document tied to a custom GPT
	CodeDoc          Code = "DOC"            // plain document Q&A
	CodePlain        Code = "PLAIN"          // default chat completion
)

// AgentCode identifies one of the specialized pro-agent task handlers.
type AgentCode string

const (
	AgentQASpecialist      AgentCode = "QA_SPECIALIST"
	AgentProposal          AgentCode = "PROPOSAL"
	AgentSEOArticle        AgentCode = "SEO_ARTICLE"
	AgentCallAnalyzerVideo AgentCode = "CALL_ANALYZER_VIDEO"
	AgentCallAnalyzerAudio AgentCode = "CALL_ANALYZER_AUDIO"
)

// Codes returns all provider codes in decision order
func Codes() []Code {
	return []Code{CodeSearch, CodeCanvas, CodeAgent, CodeCustomGPTDoc, CodeDoc, CodePlain}
}

// AgentCodes returns all pro-agent codes
func AgentCodes() []AgentCode {
	return []AgentCode{
		AgentQASpecialist,
		AgentProposal,
		AgentSEOArticle,
		AgentCallAnalyzerVideo,
		AgentCallAnalyzerAudio,
	}
}
