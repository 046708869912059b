package syncstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Eliot-Huo/Iridium-IWS/internal/blob"
)

// StateKey is the well-known blob key of the sync ledger.
const StateKey = ".sync_status.json"

// ErrStatePersistence classifies a failed ledger save. The coordinator must
// surface it: an unsaved ledger means duplicate work next pass, and silently
// treating it as success would look like progress that never happened.
var ErrStatePersistence = errors.New("syncstate: state persistence failed")

// LoadSource says where a loaded ledger actually came from.
type LoadSource string

const (
	SourceRemote        LoadSource = "remote"
	SourceLocalFallback LoadSource = "local_fallback"
	SourceEmpty         LoadSource = "empty"
)

// Store persists the ledger to the blob store under StateKey, with a local
// file mirror used as fallback when the remote is unreachable or corrupt.
type Store struct {
	blob      blob.Store
	localPath string
}

func NewStore(b blob.Store, localPath string) *Store {
	return &Store{blob: b, localPath: localPath}
}

// Load retrieves the current ledger. Outcomes:
//   - remote object found and valid: normal case;
//   - remote object absent: first run, returns an empty ledger (not an error);
//   - remote unreachable or corrupt: degrade to the local mirror if present,
//     otherwise an empty ledger, with a logged warning either way.
//
// Absence never pretends to be full freshness: an empty ledger only ever
// causes re-processing, never skipping.
func (s *Store) Load(ctx context.Context) (SyncState, LoadSource) {
	data, err := s.blob.Get(ctx, StateKey)
	switch {
	case err == nil:
		state, decErr := decode(data)
		if decErr == nil {
			return state, SourceRemote
		}
		log.Printf("[SyncState] WARNING: remote ledger corrupt (%v), trying local mirror", decErr)
	case errors.Is(err, blob.ErrNotFound):
		log.Printf("[SyncState] No ledger at %q - first sync, starting empty", StateKey)
		return NewState(), SourceEmpty
	default:
		log.Printf("[SyncState] WARNING: remote ledger unreachable (%v), trying local mirror", err)
	}

	if state, ok := s.loadLocal(); ok {
		log.Printf("[SyncState] Loaded local mirror with %d processed files", len(state.ProcessedFiles))
		return state, SourceLocalFallback
	}

	log.Printf("[SyncState] WARNING: no usable ledger anywhere - degrading to full reprocess")
	return NewState(), SourceEmpty
}

// Save persists the full ledger. The local mirror is refreshed on every
// attempt; a remote failure still returns an ErrStatePersistence error so the
// caller never advances its last-sync indicator on a phantom save.
func (s *Store) Save(ctx context.Context, state SyncState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrStatePersistence, err)
	}

	s.saveLocal(data)

	if err := s.blob.Put(ctx, StateKey, data); err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrStatePersistence, StateKey, err)
	}
	return nil
}

// Reset overwrites the ledger with an empty state. Every remote file becomes
// eligible for re-processing, which is the point of calling this.
func (s *Store) Reset(ctx context.Context) error {
	log.Printf("[SyncState] RESET requested - clearing the full ledger")
	return s.Save(ctx, NewState())
}

func (s *Store) loadLocal() (SyncState, bool) {
	if s.localPath == "" {
		return SyncState{}, false
	}
	data, err := os.ReadFile(s.localPath)
	if err != nil {
		return SyncState{}, false
	}
	state, err := decode(data)
	if err != nil {
		return SyncState{}, false
	}
	return state, true
}

func (s *Store) saveLocal(data []byte) {
	if s.localPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.localPath), 0o755); err != nil {
		log.Printf("[SyncState] WARNING: local mirror dir: %v", err)
		return
	}
	if err := os.WriteFile(s.localPath, data, 0o644); err != nil {
		log.Printf("[SyncState] WARNING: local mirror write: %v", err)
	}
}

func decode(data []byte) (SyncState, error) {
	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return SyncState{}, err
	}
	if state.ProcessedFiles == nil {
		state.ProcessedFiles = make(map[string]ProcessedFile)
	}
	if state.MonthlyStats == nil {
		state.MonthlyStats = make(map[string]MonthlyStat)
	}
	if state.Errors == nil {
		state.Errors = make(map[string]string)
	}
	if state.Version == "" {
		state.Version = stateVersion
	}
	return state, nil
}
