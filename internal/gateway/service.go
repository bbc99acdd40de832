// ABOUTME: Core gateway operations behind the WebSocket transport
// ABOUTME: Orchestrates submit: archived check, route, admit, persist, stream

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brainwave/chat-gateway/internal/credit"
	"github.com/brainwave/chat-gateway/internal/provider"
	"github.com/brainwave/chat-gateway/internal/room"
	"github.com/brainwave/chat-gateway/internal/stream"
	"github.com/brainwave/chat-gateway/internal/store"
)

// Service implements the gateway operations independent of the transport.
// Handlers in ws.go decode envelopes and delegate here.
type Service struct {
	store    store.Store
	ledger   *credit.Ledger
	registry *provider.Registry
	streams  *stream.Coordinator
	rooms    *room.Registry
	typing   *typingDebouncer
	metrics  *Metrics
	logger   *slog.Logger
}

// NewService wires the gateway operations together
func NewService(s store.Store, ledger *credit.Ledger, registry *provider.Registry, streams *stream.Coordinator, rooms *room.Registry, typingDebounce time.Duration, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    s,
		ledger:   ledger,
		registry: registry,
		streams:  streams,
		rooms:    rooms,
		typing:   newTypingDebouncer(typingDebounce),
		metrics:  metrics,
		logger:   logger.With("component", "gateway"),
	}
}

// OpError is a request failure reported only to the submitter
type OpError struct {
	Code   string
	Detail string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func opErr(code, detail string) *OpError {
	return &OpError{Code: code, Detail: detail}
}

// InitializeChat creates a chat scoped to the caller's company and announces
// it on the company room.
func (s *Service) InitializeChat(ctx context.Context, userID, companyID string, req InitializeChatRequest) (*ChatView, error) {
	if req.ChatID == "" || req.BrainID == "" {
		return nil, opErr(ErrCodeBadRequest, "chat_id and brain_id are required")
	}

	participants := req.Participants
	if len(participants) == 0 {
		participants = []string{userID}
	}

	chat := &store.Chat{
		ID:           req.ChatID,
		BrainID:      req.BrainID,
		CompanyID:    companyID,
		Participants: participants,
		Title:        req.Title,
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		if errors.Is(err, store.ErrDuplicateChat) {
			return nil, opErr(ErrCodeBadRequest, "chat already exists")
		}
		return nil, opErr(ErrCodeInternal, "creating chat failed")
	}

	view := chatView(chat)
	s.rooms.Broadcast(room.CompanyRoom(companyID), room.Event{Name: EventInitializeChat, Data: view})
	s.logger.Info("chat initialized", "chat_id", chat.ID, "brain_id", chat.BrainID, "company_id", companyID)
	return view, nil
}

// Submit runs the admission pipeline for one message. Nothing is charged or
// dispatched for a request that fails routing, and nothing is dispatched for
// one that fails admission. The returned echo is also broadcast to the chat
// room; the answer streams asynchronously after Submit returns.
func (s *Service) Submit(ctx context.Context, userID, companyID string, req UserQueryRequest) (*UserQueryEcho, error) {
	if req.Question == "" && req.AgentCode == "" {
		return nil, opErr(ErrCodeBadRequest, "question is required")
	}

	chat, err := s.store.GetChat(ctx, req.ChatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, opErr(ErrCodeNotFound, "chat not found")
		}
		return nil, opErr(ErrCodeInternal, "loading chat failed")
	}
	if chat.CompanyID != companyID {
		return nil, opErr(ErrCodeNotFound, "chat not found")
	}
	if chat.Archived {
		return nil, opErr(ErrCodeChatArchived, "chat is archived")
	}
	if s.streams.Active(chat.ID) {
		return nil, opErr(ErrCodeChatBusy, "an answer is already streaming")
	}

	decision, err := provider.Route(provider.RouteContext{
		WebSearchActive: req.WebSearchActive,
		UploadedFiles:   req.Media,
		CustomGPTDoc:    req.CustomGPTDoc,
		AgentCode:       provider.AgentCode(req.AgentCode),
		AgentFields:     req.AgentFields,
		CanvasEdit:      canvasRange(req),
	})
	if err != nil {
		var invalid *provider.InvalidAgentPayloadError
		if errors.As(err, &invalid) {
			return nil, opErr(ErrCodeInvalidAgent, invalid.Error())
		}
		return nil, opErr(ErrCodeBadRequest, err.Error())
	}

	cost := s.ledger.CostFor(decision)
	if _, err := s.ledger.Admit(ctx, companyID, cost); err != nil {
		var exceeded *credit.ExceededError
		if errors.As(err, &exceeded) {
			s.metrics.CreditRejections.Inc()
			return nil, opErr(ErrCodeCreditExceeded, exceeded.Error())
		}
		return nil, opErr(ErrCodeInternal, "admission check failed")
	}

	turnID := req.TurnID
	if turnID == "" {
		turnID = uuid.NewString()
	}
	turn := &store.Turn{
		ID:           turnID,
		ChatID:       chat.ID,
		AuthorUserID: userID,
		QuestionText: req.Question,
		ProviderCode: string(decision.Code),
		Media:        req.Media,
		CreditCost:   cost,
	}
	if err := s.store.CreateTurn(ctx, turn); err != nil {
		if errors.Is(err, store.ErrChatArchived) {
			return nil, opErr(ErrCodeChatArchived, "chat is archived")
		}
		return nil, opErr(ErrCodeInternal, "persisting turn failed")
	}

	echo := &UserQueryEcho{
		ChatID:       chat.ID,
		TurnID:       turn.ID,
		AuthorUserID: userID,
		Question:     turn.QuestionText,
		ProviderCode: turn.ProviderCode,
		Media:        turn.Media,
		CreatedSeq:   turn.CreatedSeq,
	}
	s.rooms.Broadcast(room.ChatRoom(chat.ID), room.Event{Name: EventUserQuery, Data: echo})

	session, err := s.streams.Begin(chat.ID, turn.ID)
	if err != nil {
		// Lost a submit race after the charge; settle the turn so it still
		// reaches a terminal state
		_ = s.store.SettleTurn(ctx, turn.ID, stream.ErrorAnswer, false)
		return nil, opErr(ErrCodeChatBusy, "an answer is already streaming")
	}

	s.metrics.Submissions.WithLabelValues(string(decision.Code)).Inc()
	s.metrics.ActiveStreams.Inc()
	go s.runStream(session, decision, turn)

	return echo, nil
}

// runStream dispatches the backend call and drives the session to a
// terminal state. Runs detached from the submitting request's context.
func (s *Service) runStream(session *stream.Session, decision provider.Decision, turn *store.Turn) {
	defer s.metrics.ActiveStreams.Dec()

	// Canceling after settle tears down the backend request, so a stalled
	// stream doesn't hold its connection open
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chunks := s.countChunks(s.openBackendStream(ctx, decision, turn))
	if err := s.streams.Run(ctx, session, chunks); err != nil {
		s.logger.Error("stream run failed", "chat_id", turn.ChatID, "turn_id", turn.ID, "error", err)
	}
}

// openBackendStream looks up and calls the backend. Failures return a closed
// channel so the coordinator settles the turn with the error answer.
func (s *Service) openBackendStream(ctx context.Context, decision provider.Decision, turn *store.Turn) <-chan provider.Chunk {
	backend, err := s.registry.Lookup(decision.Code)
	if err != nil {
		s.logger.Error("no backend for provider code", "provider_code", decision.Code, "turn_id", turn.ID)
		return closedChunkChannel()
	}

	chunks, err := backend.Stream(ctx, &provider.Request{
		ChatID:   turn.ChatID,
		TurnID:   turn.ID,
		Question: turn.QuestionText,
		Media:    turn.Media,
		Agent:    decision.Agent,
		Canvas:   decision.Canvas,
	})
	if err != nil {
		s.logger.Error("backend dispatch failed", "provider_code", decision.Code, "turn_id", turn.ID, "error", err)
		return closedChunkChannel()
	}
	return chunks
}

// countChunks forwards the stream while counting text chunks for metrics
func (s *Service) countChunks(in <-chan provider.Chunk) <-chan provider.Chunk {
	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		for chunk := range in {
			if chunk.Event == provider.EventText {
				s.metrics.StreamChunks.Inc()
			}
			out <- chunk
		}
	}()
	return out
}

func closedChunkChannel() <-chan provider.Chunk {
	ch := make(chan provider.Chunk)
	close(ch)
	return ch
}

// Thread appends a reply to a turn's side thread and broadcasts the updated
// badge to the chat room.
func (s *Service) Thread(ctx context.Context, userID string, req ThreadRequest) (*ThreadUpdate, error) {
	if req.Side != store.ThreadSideQuestion && req.Side != store.ThreadSideAnswer {
		return nil, opErr(ErrCodeBadRequest, "side must be question or answer")
	}

	badge, err := s.store.AppendReply(ctx, &store.ReplyEntry{
		ID:       uuid.NewString(),
		TurnID:   req.TurnID,
		Side:     req.Side,
		SenderID: userID,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, opErr(ErrCodeNotFound, "turn not found")
		}
		return nil, opErr(ErrCodeInternal, "appending reply failed")
	}

	update := &ThreadUpdate{
		ChatID:   req.ChatID,
		TurnID:   req.TurnID,
		Side:     req.Side,
		Count:    badge.Count,
		UserIDs:  badge.UserIDs,
		LastTime: badge.LastTime.UTC().Format(time.RFC3339),
	}
	s.rooms.Broadcast(room.ChatRoom(req.ChatID), room.Event{Name: EventThread, Data: update})
	return update, nil
}

// History returns one backward page of a chat's turns, ascending by
// sequence. Suppressed turns keep their stored answer but the view hides it.
func (s *Service) History(ctx context.Context, companyID string, req MessageListRequest) (*MessageListReply, error) {
	chat, err := s.store.GetChat(ctx, req.ChatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, opErr(ErrCodeNotFound, "chat not found")
		}
		return nil, opErr(ErrCodeInternal, "loading chat failed")
	}
	if chat.CompanyID != companyID {
		return nil, opErr(ErrCodeNotFound, "chat not found")
	}

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	turns, err := s.store.ListTurns(ctx, req.ChatID, req.Offset, limit)
	if err != nil {
		return nil, opErr(ErrCodeInternal, "listing turns failed")
	}
	total, err := s.store.CountTurns(ctx, req.ChatID)
	if err != nil {
		return nil, opErr(ErrCodeInternal, "counting turns failed")
	}

	views := make([]TurnView, len(turns))
	for i, turn := range turns {
		views[i] = turnView(turn)
	}
	return &MessageListReply{ChatID: req.ChatID, Offset: req.Offset, Total: total, Turns: views}, nil
}

// FetchChat returns one chat's metadata
func (s *Service) FetchChat(ctx context.Context, companyID string, req FetchChatRequest) (*ChatView, error) {
	chat, err := s.store.GetChat(ctx, req.ChatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, opErr(ErrCodeNotFound, "chat not found")
		}
		return nil, opErr(ErrCodeInternal, "loading chat failed")
	}
	if chat.CompanyID != companyID {
		return nil, opErr(ErrCodeNotFound, "chat not found")
	}
	return chatView(chat), nil
}

// Archive archives a chat. An in-flight stream keeps running suppressed: its
// answer is persisted in full but no longer broadcast.
func (s *Service) Archive(ctx context.Context, companyID string, req ArchiveChatRequest) error {
	chat, err := s.store.GetChat(ctx, req.ChatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return opErr(ErrCodeNotFound, "chat not found")
		}
		return opErr(ErrCodeInternal, "loading chat failed")
	}
	if chat.CompanyID != companyID {
		return opErr(ErrCodeNotFound, "chat not found")
	}

	if err := s.store.ArchiveChat(ctx, req.ChatID); err != nil {
		return opErr(ErrCodeInternal, "archiving chat failed")
	}
	s.streams.Suppress(req.ChatID)

	s.rooms.Broadcast(room.CompanyRoom(companyID), room.Event{
		Name: EventArchiveChat,
		Data: ArchiveChatRequest{ChatID: req.ChatID},
	})
	s.logger.Info("chat archived", "chat_id", req.ChatID, "company_id", companyID)
	return nil
}

// Typing broadcasts a typing notice to the chat room. Repeat start signals
// inside the debounce window are dropped server-side; a stop signal always
// broadcasts and opens the window for the next start.
func (s *Service) Typing(userID string, req TypingRequest) {
	if req.Typing {
		if !s.typing.allow(req.ChatID, userID) {
			return
		}
	} else {
		s.typing.clear(req.ChatID, userID)
	}
	s.rooms.Broadcast(room.ChatRoom(req.ChatID), room.Event{
		Name: EventOnQueryTyping,
		Data: TypingNotice{ChatID: req.ChatID, UserID: userID, Typing: req.Typing},
	})
}

func canvasRange(req UserQueryRequest) *provider.CanvasRange {
	if req.CanvasStart == nil || req.CanvasEnd == nil {
		return nil
	}
	return &provider.CanvasRange{Start: *req.CanvasStart, End: *req.CanvasEnd}
}

func chatView(chat *store.Chat) *ChatView {
	return &ChatView{
		ChatID:       chat.ID,
		BrainID:      chat.BrainID,
		CompanyID:    chat.CompanyID,
		Participants: chat.Participants,
		Title:        chat.Title,
		Archived:     chat.Archived,
	}
}

func turnView(turn *store.Turn) TurnView {
	view := TurnView{
		TurnID:         turn.ID,
		AuthorUserID:   turn.AuthorUserID,
		Question:       turn.QuestionText,
		Answer:         turn.AnswerText,
		ProviderCode:   turn.ProviderCode,
		Media:          turn.Media,
		CreatedSeq:     turn.CreatedSeq,
		Suppressed:     turn.Suppressed,
		QuestionThread: badgeView(turn.QuestionThread),
		AnswerThread:   badgeView(turn.AnswerThread),
		CreatedAt:      turn.CreatedAt.UTC().Format(time.RFC3339),
	}
	if turn.Suppressed {
		view.Answer = ""
	}
	return view
}

func badgeView(badge store.ThreadBadge) BadgeView {
	view := BadgeView{Count: badge.Count, UserIDs: badge.UserIDs}
	if !badge.LastTime.IsZero() {
		view.LastTime = badge.LastTime.UTC().Format(time.RFC3339)
	}
	return view
}
