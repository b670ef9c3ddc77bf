package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const replayFormatVersion = 1

// Frame is one committed state of a game.
type Frame struct {
	Version    uint64
	RecordedAt time.Time
	Doc        []byte // encoded State
}

// State decodes the frame.
func (f *Frame) State() (*State, error) {
	return Decode(f.Doc)
}

// Replay is the ordered list of committed states of one room.
type Replay struct {
	RoomID       string
	Frames       []*Frame
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay for roomID.
func NewReplay(roomID string) *Replay {
	return &Replay{
		RoomID: roomID,
		Frames: make([]*Frame, 0),
	}
}

// Record appends a committed document.
func (r *Replay) Record(version uint64, doc []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Frames = append(r.Frames, &Frame{
		Version:    version,
		RecordedAt: time.Now(),
		Doc:        append([]byte(nil), doc...),
	})
}

// Start rewinds playback to the first frame.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.CurrentIndex = 0
}

// Next returns the frame at the cursor and moves forward.
func (r *Replay) Next() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex < len(r.Frames) {
		frame := r.Frames[r.CurrentIndex]
		r.CurrentIndex++
		return frame
	}
	return nil
}

// Previous moves back one frame and returns it.
func (r *Replay) Previous() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.Frames[r.CurrentIndex]
	}
	return nil
}

// Skip moves the cursor by count frames, clamped to the recording.
func (r *Replay) Skip(count int) *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Frames) == 0 {
		return nil
	}
	idx := r.CurrentIndex + count
	if idx >= len(r.Frames) {
		idx = len(r.Frames) - 1
	}
	if idx < 0 {
		idx = 0
	}
	r.CurrentIndex = idx
	return r.Frames[idx]
}

// Size returns the number of recorded frames.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.Frames)
}

// FrameAt returns the frame at index, or nil.
func (r *Replay) FrameAt(index int) *Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= 0 && index < len(r.Frames) {
		return r.Frames[index]
	}
	return nil
}

func replayPath(directory, roomID string) string {
	return filepath.Join(directory, fmt.Sprintf("%s.replay", roomID))
}

// SaveToFile writes the replay as gzipped gob to directory/<room>.replay.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(replayPath(directory, r.RoomID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	encoder := gob.NewEncoder(gzipWriter)

	metadata := replayMetadata{
		RoomID:     r.RoomID,
		Timestamp:  time.Now(),
		Version:    replayFormatVersion,
		FrameCount: len(r.Frames),
	}
	if err := encoder.Encode(&metadata); err != nil {
		gzipWriter.Close()
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i, frame := range r.Frames {
		if err := encoder.Encode(frame); err != nil {
			gzipWriter.Close()
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}
	return gzipWriter.Close()
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, roomID string) (*Replay, error) {
	file, err := os.Open(replayPath(directory, roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != replayFormatVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.RoomID)
	for i := 0; i < metadata.FrameCount; i++ {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		replay.Frames = append(replay.Frames, &frame)
	}
	return replay, nil
}

type replayMetadata struct {
	RoomID     string
	Timestamp  time.Time
	Version    int
	FrameCount int
}

// ReplayRecorder keeps one replay per room and writes finished games to disk.
// A recorder with an empty save directory records in memory only.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay // roomID -> Replay
	saveDir string
}

// NewReplayRecorder creates a recorder saving into saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		saveDir: saveDir,
	}
}

// Record appends a committed document to the room's replay, starting one if needed.
func (rr *ReplayRecorder) Record(roomID string, version uint64, doc []byte) {
	rr.mu.Lock()
	replay, ok := rr.replays[roomID]
	if !ok {
		replay = NewReplay(roomID)
		rr.replays[roomID] = replay
	}
	rr.mu.Unlock()

	replay.Record(version, doc)
	rr.logger.Debug("recorded replay frame",
		zap.String("room_id", roomID),
		zap.Uint64("version", version),
		zap.Int("frame_count", replay.Size()),
	)
}

// Replay returns the in-memory replay for a room.
func (rr *ReplayRecorder) Replay(roomID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	replay, ok := rr.replays[roomID]
	return replay, ok
}

// Save writes the room's replay to disk and drops it from memory.
func (rr *ReplayRecorder) Save(roomID string) error {
	rr.mu.Lock()
	replay, ok := rr.replays[roomID]
	if !ok {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for room %s", roomID)
	}
	delete(rr.replays, roomID)
	rr.mu.Unlock()

	if rr.saveDir == "" {
		return nil
	}
	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	rr.logger.Info("saved replay to disk",
		zap.String("room_id", roomID),
		zap.Int("frame_count", replay.Size()),
		zap.String("directory", rr.saveDir),
	)
	return nil
}

// Load reads a saved replay.
func (rr *ReplayRecorder) Load(roomID string) (*Replay, error) {
	return LoadReplayFromFile(rr.saveDir, roomID)
}

// Clear forgets a room's replay without saving it.
func (rr *ReplayRecorder) Clear(roomID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	delete(rr.replays, roomID)
}
