package snapshot

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotserve/theaterbook/internal/domain"
)

func sampleBooking() domain.Booking {
	return domain.Booking{
		ID:           "BK-1042",
		Category:     domain.CategoryConfirmed,
		TheaterID:    "aurora",
		CustomerName: "Meera",
		DateText:     "2025-03-14",
		TimeText:     "4:00 PM - 7:00 PM",
		TotalPaise:   250000,
		AdvancePaise: 70000,
		VenuePaise:   180000,
		Occasion: map[string]domain.OccasionField{
			"occasion_name": {Label: "Occasion", Value: "Anniversary"},
			"partner_name":  {Label: "Partner Name", Value: "Dev"},
			"cake_text":     {Label: "Cake Message", Value: "Happy 5th!"},
		},
		Status:    domain.StatusActive,
		CreatedBy: "web",
		CreatedAt: time.Date(2025, time.March, 10, 11, 0, 0, 0, time.UTC),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sampleBooking()

	blob, err := Encode(in)
	require.NoError(t, err)
	// encoded form is opaque, not raw JSON
	assert.NotContains(t, blob, "Anniversary")

	out, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Occasion, out.Occasion)
	assert.Equal(t, in.AdvancePaise, out.AdvancePaise)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
}

func TestDecodePlainJSON(t *testing.T) {
	// older archive rows stored the snapshot as raw JSON
	in := sampleBooking()
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	out, err := Decode(string(raw))
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Occasion["cake_text"], out.Occasion["cake_text"])
}

func TestDecodeMalformed(t *testing.T) {
	for _, blob := range []string{
		"not base64 at all!!!",
		"aGVsbG8gd29ybGQ=", // valid base64, not gzip
		"{broken json",
		"",
	} {
		_, err := Decode(blob)
		var de *DecodeError
		require.True(t, errors.As(err, &de), "blob %q: want DecodeError, got %v", blob, err)
	}
}
