// ABOUTME: Room event constructors for the streaming lifecycle
// ABOUTME: Defined here so the coordinator can broadcast without importing gateway

package stream

import (
	"github.com/brainwave/chat-gateway/internal/room"
)

// Event names broadcast during a streaming session
const (
	EventDisableQueryInput = "disable_query_input"
	EventStartStreaming    = "start_streaming"
	EventStopStreaming     = "stop_streaming"
)

type disableQueryInputData struct {
	ChatID string `json:"chat_id"`
	TurnID string `json:"message_id"`
}

type chunkData struct {
	ChatID string `json:"chat_id"`
	TurnID string `json:"message_id"`
	Chunk  string `json:"chunk"`
}

type stopStreamingData struct {
	ChatID string `json:"chat_id"`
	TurnID string `json:"message_id"`
	Answer string `json:"answer"`
	Failed bool   `json:"failed,omitempty"`
}

func disableQueryInputEvent(chatID, turnID string) room.Event {
	return room.Event{Name: EventDisableQueryInput, Data: disableQueryInputData{ChatID: chatID, TurnID: turnID}}
}

func chunkEvent(chatID, turnID, chunk string) room.Event {
	return room.Event{Name: EventStartStreaming, Data: chunkData{ChatID: chatID, TurnID: turnID, Chunk: chunk}}
}

func stopStreamingEvent(chatID, turnID, answer string, failed bool) room.Event {
	return room.Event{Name: EventStopStreaming, Data: stopStreamingData{ChatID: chatID, TurnID: turnID, Answer: answer, Failed: failed}}
}
