package server

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/thraizz/coup-server-go/internal/game"
	"github.com/thraizz/coup-server-go/internal/room"
)

// CommandRequest is the wire form of a room command, shared by the
// WebSocket and gRPC transports.
type CommandRequest struct {
	RoomID          string   `json:"roomId"`
	Player          string   `json:"player"`
	PhaseID         string   `json:"phaseId,omitempty"`
	ExpectedVersion uint64   `json:"expectedVersion,omitempty"`
	Action          string   `json:"action,omitempty"`
	Target          string   `json:"target,omitempty"`
	Yes             bool     `json:"yes,omitempty"`
	Card            string   `json:"card,omitempty"`
	Keep            []string `json:"keep,omitempty"`
}

// Command validates the request and converts it for kind.
func (r CommandRequest) Command(kind room.CommandKind) (room.Command, error) {
	if strings.TrimSpace(r.RoomID) == "" {
		return room.Command{}, fmt.Errorf("%w: roomId is required", ErrBadRequest)
	}
	if strings.TrimSpace(r.Player) == "" {
		return room.Command{}, fmt.Errorf("%w: player is required", ErrBadRequest)
	}

	cmd := room.Command{
		Kind:            kind,
		Player:          r.Player,
		PhaseID:         r.PhaseID,
		ExpectedVersion: r.ExpectedVersion,
		Target:          r.Target,
		Yes:             r.Yes,
	}
	switch kind {
	case room.CommandPerformAction:
		action, err := game.ParseAction(r.Action)
		if err != nil {
			return room.Command{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		cmd.Action = action
	case room.CommandDiscard:
		card, err := game.ParseRole(r.Card)
		if err != nil {
			return room.Command{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		cmd.Card = card
	case room.CommandExchangeKeep:
		for _, name := range r.Keep {
			card, err := game.ParseRole(name)
			if err != nil {
				return room.Command{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
			}
			cmd.Keep = append(cmd.Keep, card)
		}
	}
	return cmd, nil
}

// Service routes transport requests to rooms.
type Service struct {
	rooms  *room.Manager
	logger *zap.Logger
}

// NewService creates a Service over rooms.
func NewService(rooms *room.Manager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{rooms: rooms, logger: logger}
}

// Room returns the room, restoring it from storage when needed.
func (s *Service) Room(ctx context.Context, roomID string) (*room.Room, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, fmt.Errorf("%w: roomId is required", ErrBadRequest)
	}
	return s.rooms.Open(ctx, roomID)
}

// Execute applies one command.
func (s *Service) Execute(ctx context.Context, kind room.CommandKind, req CommandRequest) (room.Result, error) {
	cmd, err := req.Command(kind)
	if err != nil {
		return room.Result{}, err
	}
	r, err := s.Room(ctx, req.RoomID)
	if err != nil {
		return room.Result{}, err
	}

	result, err := r.Submit(ctx, cmd)
	if err != nil {
		s.logger.Debug("command rejected",
			zap.String("room_id", req.RoomID),
			zap.String("command", string(kind)),
			zap.String("player", req.Player),
			zap.Error(err),
		)
		return result, err
	}
	return result, nil
}
