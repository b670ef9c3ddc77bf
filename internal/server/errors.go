package server

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thraizz/coup-server-go/internal/game"
	"github.com/thraizz/coup-server-go/internal/lobby"
	"github.com/thraizz/coup-server-go/internal/room"
)

// ErrBadRequest marks malformed client input.
var ErrBadRequest = errors.New("bad request")

// statusCode classifies err for gRPC callers.
func statusCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrBadRequest), errors.Is(err, lobby.ErrInvalidName):
		return codes.InvalidArgument
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, lobby.ErrLobbyNotFound):
		return codes.NotFound
	case errors.Is(err, room.ErrRoomExists), errors.Is(err, lobby.ErrNameTaken):
		return codes.AlreadyExists
	case errors.Is(err, room.ErrConflict):
		return codes.Aborted
	case errors.Is(err, room.ErrStorageUnavailable), errors.Is(err, room.ErrRoomClosed):
		return codes.Unavailable
	case errors.Is(err, lobby.ErrNotHost):
		return codes.PermissionDenied
	case errors.Is(err, game.ErrIllegalMove),
		errors.Is(err, lobby.ErrLobbyFull),
		errors.Is(err, lobby.ErrAlreadyStarted),
		errors.Is(err, lobby.ErrNotEnoughPlayers),
		errors.Is(err, lobby.ErrNotInLobby):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// toStatus converts a domain error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := statusCode(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

// httpStatus classifies err for HTTP callers.
func httpStatus(err error) int {
	switch statusCode(err) {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
