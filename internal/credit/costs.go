// ABOUTME: Credit cost table for provider codes and pro-agent codes
// ABOUTME: Provider costs come from config; agent codes use fixed costs

package credit

import (
	"github.com/brainwave/chat-gateway/internal/provider"
)

// Default per-turn costs by provider code
var defaultProviderCosts = map[provider.Code]int64{
	provider.CodePlain:        1,
	provider.CodeCanvas:       1,
	provider.CodeDoc:          2,
	provider.CodeCustomGPTDoc: 2,
	provider.CodeSearch:       2,
}

// Fixed per-task costs by agent code. Agent costs are not configurable.
var agentCosts = map[provider.AgentCode]int64{
	provider.AgentQASpecialist:      5,
	provider.AgentProposal:          8,
	provider.AgentSEOArticle:        8,
	provider.AgentCallAnalyzerVideo: 12,
	provider.AgentCallAnalyzerAudio: 10,
}

// CostTable resolves the credit cost of a routed request
type CostTable struct {
	providerCosts map[provider.Code]int64
}

// NewCostTable builds a cost table. Overrides replace default provider
// costs; unknown codes in overrides are ignored.
func NewCostTable(overrides map[string]int64) *CostTable {
	costs := make(map[provider.Code]int64, len(defaultProviderCosts))
	for code, cost := range defaultProviderCosts {
		costs[code] = cost
	}
	for code, cost := range overrides {
		if _, ok := costs[provider.Code(code)]; ok && cost > 0 {
			costs[provider.Code(code)] = cost
		}
	}
	return &CostTable{providerCosts: costs}
}

// Cost returns the credit cost for a routing decision.
// AGENT requests use the fixed cost of their agent code; everything else is
// looked up by provider code, falling back to the PLAIN cost.
func (t *CostTable) Cost(decision provider.Decision) int64 {
	if decision.Code == provider.CodeAgent && decision.Agent != nil {
		if cost, ok := agentCosts[decision.Agent.AgentCode()]; ok {
			return cost
		}
	}
	if cost, ok := t.providerCosts[decision.Code]; ok {
		return cost
	}
	return t.providerCosts[provider.CodePlain]
}
