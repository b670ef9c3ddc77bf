package server

import (
	"time"

	"google.golang.org/grpc/codes"

	"github.com/thraizz/coup-server-go/internal/game"
	"github.com/thraizz/coup-server-go/internal/game/rules"
	"github.com/thraizz/coup-server-go/internal/room"
)

// Message types pushed to clients.
const (
	MessageState  = "state"
	MessageResult = "result"
	MessageError  = "error"
)

// EventPayload is the public form of an engine event.
type EventPayload struct {
	Type        rules.EventType `json:"type"`
	Player      string          `json:"player,omitempty"`
	Target      string          `json:"target,omitempty"`
	Action      string          `json:"action,omitempty"`
	Data        string          `json:"data,omitempty"`
	Amount      int             `json:"amount,omitempty"`
	Description string          `json:"description,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// StateMessage carries one committed state as a viewer sees it.
type StateMessage struct {
	Type     string         `json:"type"`
	RoomID   string         `json:"roomId"`
	Version  uint64         `json:"version"`
	State    game.GameView  `json:"state"`
	Events   []EventPayload `json:"events,omitempty"`
	Deadline *time.Time     `json:"deadline,omitempty"`
}

// ResultMessage answers a command.
type ResultMessage struct {
	Type      string        `json:"type"`
	RequestID string        `json:"requestId,omitempty"`
	Version   uint64        `json:"version"`
	Stale     bool          `json:"stale"`
	State     game.GameView `json:"state"`
}

// ErrorMessage reports a rejected request.
type ErrorMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Code      string `json:"code"`
	Error     string `json:"error"`
}

func stateMessage(roomID, viewer string, u room.Update) StateMessage {
	msg := StateMessage{
		Type:    MessageState,
		RoomID:  roomID,
		Version: u.Version,
		State:   u.View,
		Events:  eventPayloads(u.Events, viewer),
	}
	if !u.Deadline.IsZero() {
		deadline := u.Deadline
		msg.Deadline = &deadline
	}
	return msg
}

func resultMessage(requestID string, res room.Result) ResultMessage {
	return ResultMessage{
		Type:      MessageResult,
		RequestID: requestID,
		Version:   res.Version,
		Stale:     res.Stale,
		State:     res.View,
	}
}

func errorMessage(requestID string, err error) ErrorMessage {
	code := statusCode(err)
	msg := ErrorMessage{
		Type:      MessageError,
		RequestID: requestID,
		Code:      code.String(),
		Error:     err.Error(),
	}
	if code == codes.Internal {
		msg.Error = "internal error"
	}
	return msg
}

// eventPayloads converts events for viewer. How a player answered an open
// phase is only shown to that player.
func eventPayloads(events []rules.Event, viewer string) []EventPayload {
	if len(events) == 0 {
		return nil
	}
	out := make([]EventPayload, 0, len(events))
	for _, evt := range events {
		p := EventPayload{
			Type:        evt.Type,
			Player:      evt.PlayerID,
			Target:      evt.TargetID,
			Action:      evt.Action,
			Data:        evt.Data,
			Amount:      evt.Amount,
			Description: evt.Description,
			Timestamp:   evt.Timestamp,
		}
		if evt.Type == rules.EventResponseRecorded && evt.PlayerID != viewer {
			p.Amount = 0
		}
		out = append(out, p)
	}
	return out
}
