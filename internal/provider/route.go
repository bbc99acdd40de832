// ABOUTME: Pure first-match-wins routing from request context to ProviderCode
// ABOUTME: Decision order is a designed tie-break; see doc.go

package provider

import (
	"github.com/brainwave/chat-gateway/internal/store"
)

// CanvasRange is the edit range of an in-place canvas edit.
// The caller resets its canvas state to default after dispatch.
type CanvasRange struct {
	Start int
	End   int
}

// RouteContext carries everything the router may inspect. It is passed
// explicitly with each dispatch call; there is no process-global mode.
type RouteContext struct {
	WebSearchActive bool
	UploadedFiles   []store.Media
	CustomGPTDoc    bool // a custom-GPT document is associated with this chat
	AgentCode       AgentCode
	AgentFields     map[string]string
	CanvasEdit      *CanvasRange
}

// Decision is the normalized routing result
type Decision struct {
	Code   Code
	Agent  AgentPayload // set when Code == CodeAgent
	Canvas *CanvasRange // set when Code == CodeCanvas
}

// Route maps a request context to a provider decision. Pure function,
// first match wins:
//
//  1. web search active       -> SEARCH
//  2. canvas edit             -> CANVAS
//  3. pro-agent code present  -> AGENT (sub-routed by agent code)
//  4. custom-GPT document     -> CUSTOM_GPT_DOC
//  5. any document uploaded   -> DOC
//  6. otherwise               -> PLAIN
func Route(rc RouteContext) (Decision, error) {
	if rc.WebSearchActive {
		return Decision{Code: CodeSearch}, nil
	}

	if rc.CanvasEdit != nil {
		return Decision{Code: CodeCanvas, Canvas: rc.CanvasEdit}, nil
	}

	if rc.AgentCode != "" {
		payload, err := BuildAgentPayload(rc.AgentCode, rc.AgentFields)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Code: CodeAgent, Agent: payload}, nil
	}

	if hasCustomGPTDoc(rc.UploadedFiles) || (rc.CustomGPTDoc && hasDocument(rc.UploadedFiles)) {
		return Decision{Code: CodeCustomGPTDoc}, nil
	}

	if hasDocument(rc.UploadedFiles) {
		return Decision{Code: CodeDoc}, nil
	}

	return Decision{Code: CodePlain}, nil
}

func hasDocument(files []store.Media) bool {
	for _, f := range files {
		if f.Kind == store.MediaKindDocument {
			return true
		}
	}
	return false
}

func hasCustomGPTDoc(files []store.Media) bool {
	for _, f := range files {
		if f.Kind == store.MediaKindDocument && f.CustomGPT {
			return true
		}
	}
	return false
}
