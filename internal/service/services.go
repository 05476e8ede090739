package service

import (
	"log/slog"

	"github.com/slotserve/theaterbook/internal/blobcache"
	redisx "github.com/slotserve/theaterbook/internal/redis"
	postgres "github.com/slotserve/theaterbook/internal/repository/postgres"
	redis "github.com/slotserve/theaterbook/internal/repository/redis"
	"github.com/slotserve/theaterbook/internal/service/booking"
	"github.com/slotserve/theaterbook/internal/service/lifecycle"
	"github.com/slotserve/theaterbook/internal/service/stats"
)

type Services struct {
	Booking   *booking.Service
	Lifecycle *lifecycle.Service
	Stats     *stats.Service
}

type Config struct {
	Lifecycle lifecycle.Config
	Stats     stats.Config
}

func NewServices(
	store *postgres.Store,
	counters *redis.CounterStore,
	cache *redis.Cache,
	mirror *blobcache.Store,
	pubsub *redisx.ArchivePubSub,
	logger *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		Booking: booking.New(store, counters, logger),
		Lifecycle: lifecycle.New(
			store.Bookings(),
			store.Archive(),
			counters,
			mirror,
			pubsub,
			cache,
			logger,
			cfg.Lifecycle,
		),
		Stats: stats.New(store.Bookings(), store.Archive(), counters, cache, mirror, logger, cfg.Stats),
	}
}
