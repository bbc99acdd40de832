// ABOUTME: Table tests for the provider routing decision tree
// ABOUTME: Covers all six branches, tie-breaks, and the five agent payload kinds

package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainwave/chat-gateway/internal/store"
)

func docMedia(customGPT bool) store.Media {
	return store.Media{
		URL:       "https://cdn.example.com/file.pdf",
		Kind:      store.MediaKindDocument,
		Name:      "file.pdf",
		CustomGPT: customGPT,
	}
}

func TestRoute_Branches(t *testing.T) {
	tests := []struct {
		name string
		rc   RouteContext
		want Code
	}{
		{
			name: "web search wins",
			rc:   RouteContext{WebSearchActive: true},
			want: CodeSearch,
		},
		{
			name: "web search beats canvas and agent",
			rc: RouteContext{
				WebSearchActive: true,
				CanvasEdit:      &CanvasRange{Start: 0, End: 10},
				AgentCode:       AgentQASpecialist,
			},
			want: CodeSearch,
		},
		{
			name: "canvas edit",
			rc:   RouteContext{CanvasEdit: &CanvasRange{Start: 4, End: 20}},
			want: CodeCanvas,
		},
		{
			name: "canvas beats agent",
			rc: RouteContext{
				CanvasEdit: &CanvasRange{Start: 0, End: 1},
				AgentCode:  AgentProposal,
				AgentFields: map[string]string{
					"client_name": "Acme", "project_brief": "rebuild site",
				},
			},
			want: CodeCanvas,
		},
		{
			name: "agent beats documents",
			rc: RouteContext{
				AgentCode:     AgentQASpecialist,
				AgentFields:   map[string]string{"question": "how do refunds work?"},
				UploadedFiles: []store.Media{docMedia(true)},
			},
			want: CodeAgent,
		},
		{
			name: "custom GPT tagged document",
			rc:   RouteContext{UploadedFiles: []store.Media{docMedia(true)}},
			want: CodeCustomGPTDoc,
		},
		{
			name: "custom GPT association with plain document",
			rc: RouteContext{
				CustomGPTDoc:  true,
				UploadedFiles: []store.Media{docMedia(false)},
			},
			want: CodeCustomGPTDoc,
		},
		{
			name: "plain document",
			rc:   RouteContext{UploadedFiles: []store.Media{docMedia(false)}},
			want: CodeDoc,
		},
		{
			name: "image upload is not a document",
			rc: RouteContext{
				UploadedFiles: []store.Media{{URL: "https://cdn.example.com/p.png", Kind: store.MediaKindImage}},
			},
			want: CodePlain,
		},
		{
			name: "default",
			rc:   RouteContext{},
			want: CodePlain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := Route(tt.rc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision.Code)
		})
	}
}

func TestRoute_CanvasCarriesRange(t *testing.T) {
	decision, err := Route(RouteContext{CanvasEdit: &CanvasRange{Start: 12, End: 48}})
	require.NoError(t, err)
	require.NotNil(t, decision.Canvas)
	assert.Equal(t, 12, decision.Canvas.Start)
	assert.Equal(t, 48, decision.Canvas.End)
}

func TestRoute_AgentPayloads(t *testing.T) {
	tests := []struct {
		name   string
		code   AgentCode
		fields map[string]string
	}{
		{
			name:   "qa specialist",
			code:   AgentQASpecialist,
			fields: map[string]string{"question": "does it ship to Japan?", "product_info": "widget v2"},
		},
		{
			name:   "proposal generator",
			code:   AgentProposal,
			fields: map[string]string{"client_name": "Acme", "project_brief": "migrate to cloud", "budget": "50k"},
		},
		{
			name:   "seo article generator",
			code:   AgentSEOArticle,
			fields: map[string]string{"topic": "edge caching", "keywords": "cdn, latency"},
		},
		{
			name:   "call analyzer video",
			code:   AgentCallAnalyzerVideo,
			fields: map[string]string{"media_url": "https://cdn.example.com/call.mp4"},
		},
		{
			name:   "call analyzer audio",
			code:   AgentCallAnalyzerAudio,
			fields: map[string]string{"media_url": "https://cdn.example.com/call.mp3", "language": "ja"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := Route(RouteContext{AgentCode: tt.code, AgentFields: tt.fields})
			require.NoError(t, err)
			assert.Equal(t, CodeAgent, decision.Code)
			require.NotNil(t, decision.Agent)
			assert.Equal(t, tt.code, decision.Agent.AgentCode())
		})
	}
}

func TestRoute_AgentMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		code    AgentCode
		fields  map[string]string
		missing string
	}{
		{"qa without question", AgentQASpecialist, map[string]string{"product_info": "x"}, "question"},
		{"proposal without brief", AgentProposal, map[string]string{"client_name": "Acme"}, "project_brief"},
		{"seo without keywords", AgentSEOArticle, map[string]string{"topic": "x"}, "keywords"},
		{"video without media", AgentCallAnalyzerVideo, nil, "media_url"},
		{"audio without media", AgentCallAnalyzerAudio, map[string]string{"language": "en"}, "media_url"},
		{"blank counts as missing", AgentQASpecialist, map[string]string{"question": "   "}, "question"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Route(RouteContext{AgentCode: tt.code, AgentFields: tt.fields})
			require.Error(t, err)

			var invalid *InvalidAgentPayloadError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.code, invalid.Agent)
			assert.Contains(t, invalid.Missing, tt.missing)
		})
	}
}

func TestRoute_UnknownAgentCode(t *testing.T) {
	_, err := Route(RouteContext{AgentCode: AgentCode("FORTUNE_TELLER")})
	require.Error(t, err)

	var invalid *InvalidAgentPayloadError
	assert.NotErrorAs(t, err, &invalid)
}
