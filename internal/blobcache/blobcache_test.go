package blobcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotserve/theaterbook/internal/domain"
)

func rec(id string, refund int64) domain.ArchivedBooking {
	return domain.ArchivedBooking{
		BookingID:   id,
		Disposition: domain.DispositionCancelled,
		TheaterID:   "aurora",
		RefundPaise: refund,
		ArchivedAt:  time.Date(2025, time.March, 14, 21, 0, 0, 0, time.UTC),
	}
}

func TestAppendRead(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, s.Append(ctx, rec("B1", 0)))
	require.NoError(t, s.Append(ctx, rec("B2", 0)))

	got, err := s.Read(ctx, domain.DispositionCancelled)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B1", got[0].BookingID)
	assert.Equal(t, "B2", got[1].BookingID)
}

func TestReadDeduplicatesLastWriteWins(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	// a retried finalize may append the same booking twice
	require.NoError(t, s.Append(ctx, rec("B1", 0)))
	require.NoError(t, s.Append(ctx, rec("B1", 70000)))

	got, err := s.Read(ctx, domain.DispositionCancelled)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(70000), got[0].RefundPaise)
}

func TestReadSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, rec("B1", 0)))

	f, err := os.OpenFile(filepath.Join(dir, "archive-cancelled.jsonl"), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{truncated\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, s.Append(ctx, rec("B2", 0)))

	got, err := s.Read(ctx, domain.DispositionCancelled)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestReadMissingFile(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	got, err := s.Read(context.Background(), domain.DispositionCompleted)
	require.NoError(t, err)
	assert.Empty(t, got)
}
