// ABOUTME: HTTP streaming backend posting requests to a remote completion API
// ABOUTME: Reads newline-delimited JSON chunks and forwards them in arrival order

package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HTTPBackend streams completions from a remote HTTP API. The wire format is
// newline-delimited JSON: each line is {"text": "..."} and the final line is
// {"done": true} or {"error": "..."}.
type HTTPBackend struct {
	url    string
	model  string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPBackend creates a backend for the given endpoint URL and model name.
// Pass nil logger for default.
func NewHTTPBackend(url, model string, logger *slog.Logger) *HTTPBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPBackend{
		url:   url,
		model: model,
		client: &http.Client{
			// No overall timeout: streams are long-lived. Connection setup
			// is bounded instead.
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		logger: logger.With("component", "backend", "url", url),
	}
}

// SetAPIKey sets a bearer token sent with every request. Empty disables it.
func (b *HTTPBackend) SetAPIKey(key string) {
	b.apiKey = key
}

type wireRequest struct {
	ChatID   string         `json:"chat_id"`
	TurnID   string         `json:"turn_id"`
	Question string         `json:"question"`
	Model    string         `json:"model"`
	Media    []wireMedia    `json:"media,omitempty"`
	Agent    map[string]any `json:"agent,omitempty"`
	Canvas   *wireCanvas    `json:"canvas,omitempty"`
}

type wireMedia struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type wireCanvas struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type wireChunk struct {
	Text  string `json:"text"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Stream posts the request and returns a channel of chunks read from the
// response body. The channel is closed after the terminal event.
func (b *HTTPBackend) Stream(ctx context.Context, req *Request) (<-chan Chunk, error) {
	body, err := json.Marshal(b.buildWireRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling backend: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	out := make(chan Chunk, 16)
	go b.readStream(resp, req.TurnID, out)
	return out, nil
}

// readStream reads the response line by line until a terminal event.
// A single sequential read loop preserves chunk order by construction.
func (b *HTTPBackend) readStream(resp *http.Response, turnID string, out chan<- Chunk) {
	defer close(out)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var wc wireChunk
		if err := json.Unmarshal(line, &wc); err != nil {
			b.logger.Warn("malformed chunk line", "turn_id", turnID, "error", err)
			continue
		}

		switch {
		case wc.Error != "":
			out <- Chunk{Event: EventError, Err: wc.Error}
			return
		case wc.Done:
			out <- Chunk{Event: EventDone}
			return
		default:
			out <- Chunk{Event: EventText, Text: wc.Text}
		}
	}

	if err := scanner.Err(); err != nil {
		out <- Chunk{Event: EventError, Err: err.Error()}
		return
	}
	// Stream ended without a terminal line: treat as provider failure
	out <- Chunk{Event: EventError, Err: "stream ended unexpectedly"}
}

func (b *HTTPBackend) buildWireRequest(req *Request) *wireRequest {
	wr := &wireRequest{
		ChatID:   req.ChatID,
		TurnID:   req.TurnID,
		Question: req.Question,
		Model:    b.model,
	}
	for _, m := range req.Media {
		wr.Media = append(wr.Media, wireMedia{URL: m.URL, Kind: m.Kind, Name: m.Name})
	}
	if req.Canvas != nil {
		wr.Canvas = &wireCanvas{Start: req.Canvas.Start, End: req.Canvas.End}
	}
	if req.Agent != nil {
		wr.Agent = agentWireFields(req.Agent)
	}
	return wr
}

// agentWireFields flattens an agent payload for the wire
func agentWireFields(p AgentPayload) map[string]any {
	fields := map[string]any{"code": string(p.AgentCode())}
	switch v := p.(type) {
	case QAPayload:
		fields["question"] = v.Question
		fields["product_info"] = v.ProductInfo
	case ProposalPayload:
		fields["client_name"] = v.ClientName
		fields["project_brief"] = v.ProjectBrief
		fields["budget"] = v.Budget
	case SEOArticlePayload:
		fields["topic"] = v.Topic
		fields["keywords"] = v.Keywords
		fields["audience"] = v.Audience
	case CallAnalyzerPayload:
		fields["media_url"] = v.MediaURL
		fields["language"] = v.Language
	}
	return fields
}

// Ensure HTTPBackend implements the Backend interface
var _ Backend = (*HTTPBackend)(nil)
