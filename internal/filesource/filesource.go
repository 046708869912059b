// Package filesource abstracts the remote CDR drop point. The clearing house
// publishes fixed-format .dat files over FTP; the engine only ever lists and
// fetches, never writes.
package filesource

import (
	"context"
	"errors"
	"fmt"

	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
)

// ErrFetchFailed classifies per-file retrieval failures. The coordinator
// records them and moves on; the file is retried on the next pass because it
// was never marked processed.
var ErrFetchFailed = errors.New("filesource: fetch failed")

// Source lists and retrieves remote CDR files. Implementations make no
// ordering or atomicity promises and may be slow or intermittently
// unreachable; every call must honor the caller's context.
type Source interface {
	List(ctx context.Context) ([]models.RemoteFile, error)
	Fetch(ctx context.Context, name string) ([]byte, error)
}

func fetchError(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrFetchFailed, name, err)
}
