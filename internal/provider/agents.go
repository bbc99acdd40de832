// ABOUTME: Pro-agent payload variants and their dispatch table
// ABOUTME: Each agent code validates its own required fields independently

package provider

import (
	"fmt"
	"strings"
)

// InvalidAgentPayloadError reports required fields missing from a pro-agent
// request. It blocks dispatch and is shown to the submitter.
type InvalidAgentPayloadError struct {
	Agent   AgentCode
	Missing []string
}

func (e *InvalidAgentPayloadError) Error() string {
	return fmt.Sprintf("invalid payload for agent %s: missing %s",
		e.Agent, strings.Join(e.Missing, ", "))
}

// AgentPayload is one of the five normalized pro-agent request shapes.
type AgentPayload interface {
	AgentCode() AgentCode
}

// QAPayload is the QA-specialist request shape
type QAPayload struct {
	Question    string
	ProductInfo string
}

func (QAPayload) AgentCode() AgentCode { return AgentQASpecialist }

// ProposalPayload is the proposal-generator request shape
type ProposalPayload struct {
	ClientName   string
	ProjectBrief string
	Budget       string // free text, optional
}

func (ProposalPayload) AgentCode() AgentCode { return AgentProposal }

// SEOArticlePayload is the SEO-article-generator request shape
type SEOArticlePayload struct {
	Topic    string
	Keywords string
	Audience string // optional
}

func (SEOArticlePayload) AgentCode() AgentCode { return AgentSEOArticle }

// CallAnalyzerPayload is the call-analyzer request shape, shared by the
// video and audio variants which differ in media kind and code.
type CallAnalyzerPayload struct {
	Code     AgentCode // AgentCallAnalyzerVideo or AgentCallAnalyzerAudio
	MediaURL string
	Language string // optional, defaults to the brain's language
}

func (p CallAnalyzerPayload) AgentCode() AgentCode { return p.Code }

// agentBuilder validates raw fields and produces the normalized payload
type agentBuilder func(fields map[string]string) (AgentPayload, error)

// agentTable dispatches agent codes to their payload builders.
// Each builder owns its required-field set; there is no shared validation.
var agentTable = map[AgentCode]agentBuilder{
	AgentQASpecialist: func(fields map[string]string) (AgentPayload, error) {
		missing := missingFields(fields, "question")
		if len(missing) > 0 {
			return nil, &InvalidAgentPayloadError{Agent: AgentQASpecialist, Missing: missing}
		}
		return QAPayload{
			Question:    fields["question"],
			ProductInfo: fields["product_info"],
		}, nil
	},
	AgentProposal: func(fields map[string]string) (AgentPayload, error) {
		missing := missingFields(fields, "client_name", "project_brief")
		if len(missing) > 0 {
			return nil, &InvalidAgentPayloadError{Agent: AgentProposal, Missing: missing}
		}
		return ProposalPayload{
			ClientName:   fields["client_name"],
			ProjectBrief: fields["project_brief"],
			Budget:       fields["budget"],
		}, nil
	},
	AgentSEOArticle: func(fields map[string]string) (AgentPayload, error) {
		missing := missingFields(fields, "topic", "keywords")
		if len(missing) > 0 {
			return nil, &InvalidAgentPayloadError{Agent: AgentSEOArticle, Missing: missing}
		}
		return SEOArticlePayload{
			Topic:    fields["topic"],
			Keywords: fields["keywords"],
			Audience: fields["audience"],
		}, nil
	},
	AgentCallAnalyzerVideo: func(fields map[string]string) (AgentPayload, error) {
		missing := missingFields(fields, "media_url")
		if len(missing) > 0 {
			return nil, &InvalidAgentPayloadError{Agent: AgentCallAnalyzerVideo, Missing: missing}
		}
		return CallAnalyzerPayload{
			Code:     AgentCallAnalyzerVideo,
			MediaURL: fields["media_url"],
			Language: fields["language"],
		}, nil
	},
	AgentCallAnalyzerAudio: func(fields map[string]string) (AgentPayload, error) {
		missing := missingFields(fields, "media_url")
		if len(missing) > 0 {
			return nil, &InvalidAgentPayloadError{Agent: AgentCallAnalyzerAudio, Missing: missing}
		}
		return CallAnalyzerPayload{
			Code:     AgentCallAnalyzerAudio,
			MediaURL: fields["media_url"],
			Language: fields["language"],
		}, nil
	},
}

// BuildAgentPayload normalizes raw pro-agent fields for the given code.
// Returns InvalidAgentPayloadError when required fields are absent, or an
// error for unknown codes.
func BuildAgentPayload(code AgentCode, fields map[string]string) (AgentPayload, error) {
	builder, ok := agentTable[code]
	if !ok {
		return nil, fmt.Errorf("unknown agent code %q", code)
	}
	return builder(fields)
}

func missingFields(fields map[string]string, required ...string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
