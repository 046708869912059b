package syncstate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Eliot-Huo/Iridium-IWS/internal/blob"
)

// failingStore simulates an unreachable blob backend.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("backend down")
}

func (failingStore) Put(ctx context.Context, key string, data []byte) error {
	return errors.New("backend down")
}

func newDirStore(t *testing.T) blob.Store {
	t.Helper()
	s, err := blob.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	return s
}

func TestLoadFirstRunReturnsEmpty(t *testing.T) {
	store := NewStore(newDirStore(t), "")
	state, source := store.Load(context.Background())
	if source != SourceEmpty {
		t.Errorf("source = %s, want empty", source)
	}
	if state.TotalFilesProcessed != 0 || len(state.ProcessedFiles) != 0 {
		t.Errorf("first-run state not empty: %+v", state)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newDirStore(t), filepath.Join(t.TempDir(), "mirror.json"))

	state := NewState().WithProcessed("a.dat", 160, 3, time.Now().UTC())
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, source := store.Load(ctx)
	if source != SourceRemote {
		t.Errorf("source = %s, want remote", source)
	}
	if !loaded.IsProcessed("a.dat") {
		t.Error("a.dat missing after round trip")
	}
	if loaded.ProcessedFiles["a.dat"].RecordCount != 3 {
		t.Errorf("record count = %d, want 3", loaded.ProcessedFiles["a.dat"].RecordCount)
	}
}

func TestLoadFallsBackToLocalMirror(t *testing.T) {
	ctx := context.Background()
	mirror := filepath.Join(t.TempDir(), "mirror.json")

	// A healthy store writes the mirror on save.
	healthy := NewStore(newDirStore(t), mirror)
	if err := healthy.Save(ctx, NewState().WithProcessed("a.dat", 160, 1, time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A store with a dead backend must degrade to the mirror.
	degraded := NewStore(failingStore{}, mirror)
	state, source := degraded.Load(ctx)
	if source != SourceLocalFallback {
		t.Errorf("source = %s, want local_fallback", source)
	}
	if !state.IsProcessed("a.dat") {
		t.Error("mirror state lost a.dat")
	}
}

func TestLoadUnreachableWithoutMirrorDegradesToEmpty(t *testing.T) {
	store := NewStore(failingStore{}, "")
	state, source := store.Load(context.Background())
	if source != SourceEmpty {
		t.Errorf("source = %s, want empty", source)
	}
	if len(state.ProcessedFiles) != 0 {
		t.Error("degraded state should be empty, never partially fresh")
	}
}

func TestLoadCorruptRemoteFallsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := blob.NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	if err := backend.Put(ctx, StateKey, []byte("{not json")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	store := NewStore(backend, "")
	state, source := store.Load(ctx)
	if source != SourceEmpty {
		t.Errorf("source = %s, want empty", source)
	}
	if len(state.ProcessedFiles) != 0 {
		t.Error("corrupt remote must not yield partial state")
	}
}

func TestSaveFailureReturnsPersistenceError(t *testing.T) {
	mirror := filepath.Join(t.TempDir(), "mirror.json")
	store := NewStore(failingStore{}, mirror)

	err := store.Save(context.Background(), NewState())
	if !errors.Is(err, ErrStatePersistence) {
		t.Fatalf("err = %v, want ErrStatePersistence", err)
	}

	// The mirror is still refreshed so the local fallback stays current.
	if _, statErr := os.Stat(mirror); statErr != nil {
		t.Errorf("local mirror not written: %v", statErr)
	}
}

func TestResetClearsLedger(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newDirStore(t), "")

	if err := store.Save(ctx, NewState().WithProcessed("a.dat", 160, 1, time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	state, _ := store.Load(ctx)
	if state.IsProcessed("a.dat") {
		t.Error("a.dat survived the reset")
	}
}
