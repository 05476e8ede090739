package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/slotserve/theaterbook/internal/domain"
	redisrepo "github.com/slotserve/theaterbook/internal/repository/redis"
	"github.com/slotserve/theaterbook/internal/schedule"
	"github.com/slotserve/theaterbook/internal/service"
	"github.com/slotserve/theaterbook/internal/service/booking"
	"github.com/slotserve/theaterbook/internal/service/lifecycle"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.POST("/bookings", handleCreateBooking(svcs, idem))
	r.GET("/bookings/:id", handleGetBooking(svcs))
	r.POST("/bookings/:id/cancel", handleCancelBooking(svcs, limiter))

	r.GET("/stats", handleGetStats(svcs))
	r.GET("/archive", handleQueryArchive(svcs))

	// Admin-API
	// TODO: add admin middleware
	admin := r.Group("/admin")
	{
		admin.POST("/bookings/:id/complete", handleCompleteBooking(svcs))
		admin.POST("/sweep", handleSweep(svcs))
		admin.POST("/resume", handleResume(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Create booking (idempotent)
// @Param    req body  CreateBookingRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateBookingResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "duplicate id / idem in progress"
// @Router   /bookings [post]
func handleCreateBooking(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemCreate(req.TheaterID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		b, err := svcs.Booking.Create(c.Request.Context(), booking.CreateParams{
			ID:           req.ID,
			Category:     domain.BookingCategory(req.Category),
			TheaterID:    req.TheaterID,
			CustomerName: req.CustomerName,
			DateText:     req.DateText,
			TimeText:     req.TimeText,
			TotalPaise:   req.TotalPaise,
			AdvancePaise: req.AdvancePaise,
			VenuePaise:   req.VenuePaise,
			Occasion:     req.Occasion,
			CreatedBy:    req.CreatedBy,
		}, time.Now())
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := CreateBookingResponse{BookingID: b.ID}

		if idemStorageKey != "" && idem != nil {
			buf, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(buf))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Get active booking
// @Param    id  path  string  true  "Booking ID"
// @Success  200 {object} domain.Booking
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := svcs.Booking.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Cancel booking
// @Param    id   path  string  true  "Booking ID"
// @Param    req  body  CancelBookingRequest  false  "payload"
// @Success  200 {object} FinalizeResponse
// @Success  202 {object} FinalizeResponse "claimed, archival completing asynchronously"
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already finalized"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(
	svcs *service.Services,
	limiter *redisrepo.SlidingWindowLimiter,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil {
			ok, _, retry, err := limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP())
			if err == nil && !ok {
				c.Header("Retry-After", retry.Round(time.Second).String())
				c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
				return
			}
		}

		// body is optional for cancellations
		var req CancelBookingRequest
		_ = c.ShouldBindJSON(&req)

		res, err := svcs.Lifecycle.Finalize(
			c.Request.Context(),
			c.Param("id"),
			domain.DispositionCancelled,
			lifecycle.FinalizeOptions{Reason: req.Reason},
			time.Now(),
		)
		if err != nil {
			// the claim already succeeded: the booking is no longer
			// bookable, archival finishes on the next sweep pass
			if errors.Is(err, lifecycle.ErrArchivePending) {
				c.JSON(http.StatusAccepted, FinalizeResponse{
					BookingID:   res.BookingID,
					Disposition: string(res.Disposition),
					RefundPaise: res.RefundPaise,
					Status:      "processing",
				})
				return
			}
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, FinalizeResponse{
			BookingID:   res.BookingID,
			Disposition: string(res.Disposition),
			RefundPaise: res.RefundPaise,
			Status:      "archived",
		})
	}
}

// @Summary  Manually complete booking
// @Param    id  path  string  true  "Booking ID"
// @Success  200 {object} FinalizeResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /admin/bookings/{id}/complete [post]
func handleCompleteBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svcs.Lifecycle.Finalize(
			c.Request.Context(),
			c.Param("id"),
			domain.DispositionCompleted,
			lifecycle.FinalizeOptions{},
			time.Now(),
		)
		if err != nil {
			if errors.Is(err, lifecycle.ErrArchivePending) {
				c.JSON(http.StatusAccepted, FinalizeResponse{
					BookingID:   res.BookingID,
					Disposition: string(res.Disposition),
					Status:      "processing",
				})
				return
			}
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, FinalizeResponse{
			BookingID:   res.BookingID,
			Disposition: string(res.Disposition),
			Status:      "archived",
		})
	}
}

// @Summary  Rolling counters per category
// @Success  200 {object} stats.Report
// @Router   /stats [get]
func handleGetStats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svcs.Stats.ReadAll(c.Request.Context(), time.Now())
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, report, "public, max-age=15", true)
	}
}

// @Summary  Query archived bookings
// @Param    disposition  query  string  true   "completed | cancelled"
// @Param    from         query  string  false  "start date (YYYY-MM-DD)"
// @Param    to           query  string  false  "end date (YYYY-MM-DD, exclusive)"
// @Success  200 {array}  stats.Entry
// @Router   /archive [get]
func handleQueryArchive(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		disposition := domain.Disposition(c.Query("disposition"))
		if !disposition.Valid() {
			badRequest(c, "disposition must be completed or cancelled")
			return
		}

		to := time.Now().In(schedule.BusinessZone)
		from := to.AddDate(0, 0, -30)

		var err error
		if s := c.Query("from"); s != "" {
			from, err = parseBusinessDate(s)
			if err != nil {
				badRequest(c, "invalid from (YYYY-MM-DD)")
				return
			}
		}
		if s := c.Query("to"); s != "" {
			to, err = parseBusinessDate(s)
			if err != nil {
				badRequest(c, "invalid to (YYYY-MM-DD)")
				return
			}
		}

		entries, err := svcs.Stats.Archive(c.Request.Context(), disposition, from, to)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 30s
		writeJSONWithCache(c, http.StatusOK, entries, "public, max-age=30", true)
	}
}

// @Summary  Sweep expired bookings
// @Param    req  body  SweepRequest  false  "payload"
// @Success  200 {object} lifecycle.SweepReport
// @Router   /admin/sweep [post]
func handleSweep(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SweepRequest
		_ = c.ShouldBindJSON(&req)

		now := time.Now()
		if req.Now != "" {
			t, err := parseRFC3339(req.Now)
			if err != nil {
				badRequest(c, "invalid now (RFC3339)")
				return
			}
			now = t
		}

		// the auto-complete variant must be selected explicitly
		if req.Rule == "auto-complete" {
			report, err := svcs.Lifecycle.SweepExpiredWithRule(
				c.Request.Context(), now, schedule.RuleConfirmedAutoComplete,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			c.JSON(http.StatusOK, report)
			return
		}

		report, err := svcs.Lifecycle.SweepExpired(c.Request.Context(), now)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// @Summary  Resume claimed-but-not-purged bookings
// @Success  200 {object} map[string]int
// @Router   /admin/resume [post]
func handleResume(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		resumed, err := svcs.Lifecycle.ResumeClaimed(c.Request.Context(), time.Now())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"resumed": resumed})
	}
}

// --- Helpers ---

func parseBusinessDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, schedule.BusinessZone)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// booking service
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, booking.ErrDuplicateBooking):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking id already exists"})
		return
	case errors.Is(err, booking.ErrInvalidCategory):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid category"})
		return
	// lifecycle service
	case errors.Is(err, lifecycle.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, lifecycle.ErrAlreadyFinalized):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking already finalized"})
		return
	case errors.Is(err, lifecycle.ErrNotEligible):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking not yet expired"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
