package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ArchivePubSub broadcasts booking-archived notifications so dashboard
// consumers can refresh without polling the archive tables.
type ArchivePubSub struct {
	rdb     *redis.Client
	channel string
}

func NewArchivePubSub(rdb *redis.Client) *ArchivePubSub {
	return &ArchivePubSub{
		rdb:     rdb,
		channel: ChannelBookingArchived(),
	}
}

type bookingArchivedMsg struct {
	Type        string `json:"type"`
	BookingID   string `json:"booking_id"`
	Disposition string `json:"disposition"`
	TsUnix      int64  `json:"ts_unix"`
}

func (p *ArchivePubSub) PublishBookingArchived(ctx context.Context, bookingID, disposition string) error {
	msg := bookingArchivedMsg{
		Type:        "booking_archived",
		BookingID:   bookingID,
		Disposition: disposition,
		TsUnix:      time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *ArchivePubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, bookingID, disposition string)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev bookingArchivedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.BookingID != "" {
				handler(ctx, ev.BookingID, ev.Disposition)
			}
		}
	}
}
