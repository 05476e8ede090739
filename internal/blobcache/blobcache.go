// Package blobcache mirrors the archive into append-only JSON files,
// one per disposition. It is a cheap fallback read path and never
// authoritative: appends are best-effort, and a record may appear more
// than once across retries, so readers dedupe by booking id with
// last-write-wins.
package blobcache

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/slotserve/theaterbook/internal/domain"
)

type Store struct {
	dir string

	// serializes appends to the same file within this process; cross
	// process safety comes from O_APPEND single-line writes
	mu sync.Mutex
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobcache: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(d domain.Disposition) string {
	return filepath.Join(s.dir, fmt.Sprintf("archive-%s.jsonl", d))
}

// Append writes one archived record to the disposition's log file.
func (s *Store) Append(ctx context.Context, rec domain.ArchivedBooking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("blobcache: marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(rec.Disposition), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("blobcache: open: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("blobcache: write: %w", err)
	}

	return nil
}

// Read loads all records for a disposition, deduplicated by booking id
// with the last appended record winning. Unparseable lines are skipped
// rather than failing the whole read.
func (s *Store) Read(ctx context.Context, d domain.Disposition) ([]domain.ArchivedBooking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(d))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("blobcache: open: %w", err)
	}
	defer f.Close()

	byID := make(map[string]domain.ArchivedBooking)
	var order []string

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var rec domain.ArchivedBooking
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil || rec.BookingID == "" {
			continue
		}
		if _, seen := byID[rec.BookingID]; !seen {
			order = append(order, rec.BookingID)
		}
		byID[rec.BookingID] = rec
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("blobcache: scan: %w", err)
	}

	out := make([]domain.ArchivedBooking, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}

	return out, nil
}
