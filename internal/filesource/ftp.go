package filesource

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"golang.org/x/time/rate"

	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
)

// FTPConfig holds connection parameters for the clearing house FTP drop.
type FTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	Dir      string
	Timeout  time.Duration

	// FetchesPerSecond paces Retr calls so a large backlog does not hammer
	// the remote. Zero disables pacing.
	FetchesPerSecond float64
}

// FTPSource retrieves CDR files from an FTP server. Each call dials a fresh
// connection: passes are minutes apart and the servers involved drop idle
// control connections anyway.
type FTPSource struct {
	cfg     FTPConfig
	limiter *rate.Limiter
}

func NewFTPSource(cfg FTPConfig) *FTPSource {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.FetchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.FetchesPerSecond), 1)
	}
	return &FTPSource{cfg: cfg, limiter: limiter}
}

func (s *FTPSource) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(s.cfg.Addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(s.cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("filesource: dial %s: %w", s.cfg.Addr, err)
	}
	if err := conn.Login(s.cfg.Username, s.cfg.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("filesource: login: %w", err)
	}
	if s.cfg.Dir != "" {
		if err := conn.ChangeDir(s.cfg.Dir); err != nil {
			conn.Quit()
			return nil, fmt.Errorf("filesource: cwd %s: %w", s.cfg.Dir, err)
		}
	}
	return conn, nil
}

// List enumerates the .dat files currently at the drop point.
func (s *FTPSource) List(ctx context.Context) ([]models.RemoteFile, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	entries, err := conn.List("")
	if err != nil {
		return nil, fmt.Errorf("filesource: list: %w", err)
	}

	var files []models.RemoteFile
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name), ".dat") {
			continue
		}
		files = append(files, models.RemoteFile{Name: e.Name, Size: int64(e.Size)})
	}
	log.Printf("[FileSource] Listed %d CDR files (of %d entries)", len(files), len(entries))
	return files, nil
}

// fetchAttempts bounds retries of one download. FTP drops are flaky enough
// that a single transient failure should not push the file to the next pass.
const fetchAttempts = 3

// Fetch downloads one file's bytes, retrying transient failures.
func (s *FTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fetchError(name, err)
			}
		}

		data, err := s.fetchOnce(ctx, name)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.Printf("[FileSource] Fetch %s attempt %d/%d failed: %v", name, attempt, fetchAttempts, err)
	}
	return nil, fetchError(name, lastErr)
}

func (s *FTPSource) fetchOnce(ctx context.Context, name string) ([]byte, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	resp, err := conn.Retr(name)
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	return io.ReadAll(resp)
}
