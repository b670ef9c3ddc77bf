package room

import "errors"

var (
	// ErrConflict is returned when the room state moved on before a command
	// could be committed. The caller should refresh its snapshot and retry.
	ErrConflict = errors.New("room state changed, retry")
	// ErrStorageUnavailable is returned when the store could not be reached.
	// Nothing was changed and the command may be retried.
	ErrStorageUnavailable = errors.New("room storage unavailable")
	// ErrRoomNotFound is returned for unknown room ids.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists is returned when creating a room whose id is taken.
	ErrRoomExists = errors.New("room already exists")
	// ErrRoomClosed is returned for commands sent to a closed room.
	ErrRoomClosed = errors.New("room closed")
)
