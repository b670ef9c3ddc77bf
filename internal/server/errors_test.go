package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thraizz/coup-server-go/internal/game"
	"github.com/thraizz/coup-server-go/internal/lobby"
	"github.com/thraizz/coup-server-go/internal/room"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
		http int
	}{
		{fmt.Errorf("%w: no room", ErrBadRequest), codes.InvalidArgument, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", room.ErrRoomNotFound), codes.NotFound, http.StatusNotFound},
		{lobby.ErrLobbyNotFound, codes.NotFound, http.StatusNotFound},
		{room.ErrConflict, codes.Aborted, http.StatusConflict},
		{room.ErrStorageUnavailable, codes.Unavailable, http.StatusServiceUnavailable},
		{game.ErrGameOver, codes.FailedPrecondition, http.StatusConflict},
		{lobby.ErrNotHost, codes.PermissionDenied, http.StatusForbidden},
		{lobby.ErrNameTaken, codes.AlreadyExists, http.StatusConflict},
		{context.DeadlineExceeded, codes.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), codes.Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, statusCode(tc.err), tc.err.Error())
		assert.Equal(t, tc.http, httpStatus(tc.err), tc.err.Error())
	}
}

func TestToStatusHidesInternalErrors(t *testing.T) {
	st, ok := status.FromError(toStatus(errors.New("database password is hunter2")))
	assert.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "internal error", st.Message())

	assert.NoError(t, toStatus(nil))

	already := status.Error(codes.Unauthenticated, "who are you")
	assert.Equal(t, already, toStatus(already))
}
