// Package snapshot encodes the full original booking into the opaque
// blob stored on an archive row, and decodes blobs back tolerantly.
// Archived data accumulates for years, so the decoder accepts both the
// current compressed encoding and the plain JSON shape older rows used.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/slotserve/theaterbook/internal/domain"
)

// DecodeError reports an unreadable snapshot blob. Report consumers
// receive it as a per-record failure, never as a whole-query failure.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("snapshot: decode: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Encode serializes a booking to the archive blob format:
// JSON, gzipped, base64.
func Encode(b domain.Booking) (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("snapshot: encode: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("snapshot: encode: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode parses an archive blob. Blobs that look like structured JSON
// are parsed directly; anything else is treated as base64+gzip.
func Decode(blob string) (domain.Booking, error) {
	var b domain.Booking

	trimmed := strings.TrimSpace(blob)
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &b); err != nil {
			return domain.Booking{}, &DecodeError{Cause: err}
		}
		return b, nil
	}

	packed, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return domain.Booking{}, &DecodeError{Cause: err}
	}

	zr, err := gzip.NewReader(bytes.NewReader(packed))
	if err != nil {
		return domain.Booking{}, &DecodeError{Cause: err}
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return domain.Booking{}, &DecodeError{Cause: err}
	}

	if err := json.Unmarshal(raw, &b); err != nil {
		return domain.Booking{}, &DecodeError{Cause: err}
	}

	return b, nil
}
