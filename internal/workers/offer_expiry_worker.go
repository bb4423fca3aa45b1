package workers

import (
	"context"
	"sync"
	"time"

	"mmh_backend/internal/logger"
	"mmh_backend/internal/metrics"
	"mmh_backend/internal/services"

	"gorm.io/gorm"
)

const defaultOfferExpiryInterval = time.Hour

// OfferExpiryWorker archives published offers once their validity window
// has passed.
type OfferExpiryWorker struct {
	db       *gorm.DB
	offers   services.OfferService
	interval time.Duration
	metrics  *metrics.Metrics

	wg sync.WaitGroup
}

func NewOfferExpiryWorker(db *gorm.DB, offers services.OfferService, interval time.Duration, m *metrics.Metrics) *OfferExpiryWorker {
	if interval <= 0 {
		interval = defaultOfferExpiryInterval
	}
	return &OfferExpiryWorker{db: db, offers: offers, interval: interval, metrics: m}
}

// Start runs the sweep on every tick until ctx is cancelled.
func (w *OfferExpiryWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

// Wait blocks until the loop started by Start has returned.
func (w *OfferExpiryWorker) Wait() {
	w.wg.Wait()
}

func (w *OfferExpiryWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Offer expiry worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns how many offers were archived.
func (w *OfferExpiryWorker) RunOnce(ctx context.Context) int64 {
	n, err := w.offers.ArchiveExpired(ctx, w.db.WithContext(ctx))
	if err != nil {
		logger.WorkerLog("offer_expiry", "archive_expired", err)
		return 0
	}
	if n > 0 {
		w.metrics.OffersExpired(n)
		logger.WorkerLog("offer_expiry", "archive_expired", nil, "archived", n)
	}
	return n
}
