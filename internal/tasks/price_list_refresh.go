// internal/tasks/price_list_refresh.go
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/retail-backend/internal/models"
	"github.com/javajoker/retail-backend/internal/services"
)

// ShopRefresher is the part of the import service the task needs.
type ShopRefresher interface {
	RefreshableShops(ctx context.Context) ([]models.Shop, error)
	Refresh(ctx context.Context, shop models.Shop) (*services.ImportReport, error)
}

// PriceListRefreshTask periodically re-imports shops from their stored URL.
type PriceListRefreshTask struct {
	refresher        ShopRefresher
	cron             *cron.Cron
	schedule         string
	concurrencyLimit int
	runTimeout       time.Duration

	mu      sync.Mutex
	running bool
}

type RefreshSummary struct {
	Shops     int
	Succeeded int
	Failed    int
}

func NewPriceListRefreshTask(refresher ShopRefresher, schedule string, concurrency int) *PriceListRefreshTask {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PriceListRefreshTask{
		refresher:        refresher,
		cron:             cron.New(cron.WithSeconds()),
		schedule:         schedule,
		concurrencyLimit: concurrency,
		runTimeout:       30 * time.Minute,
	}
}

func (t *PriceListRefreshTask) Start() error {
	_, err := t.cron.AddFunc(t.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.runTimeout)
		defer cancel()
		t.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	t.cron.Start()
	logrus.WithField("schedule", t.schedule).Info("Price list refresh task started")
	return nil
}

func (t *PriceListRefreshTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	logrus.Info("Price list refresh task stopped")
}

// RunOnce refreshes every shop with a URL. Overlapping runs are skipped and
// one shop's failure never affects the others.
func (t *PriceListRefreshTask) RunOnce(ctx context.Context) RefreshSummary {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		logrus.Warn("Price list refresh still running, skipping")
		return RefreshSummary{}
	}
	t.running = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	shops, err := t.refresher.RefreshableShops(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list shops for refresh")
		return RefreshSummary{}
	}

	summary := RefreshSummary{Shops: len(shops)}
	if len(shops) == 0 {
		return summary
	}

	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range shops {
		shop := shops[i]
		if ctx.Err() != nil {
			logrus.Warn("Price list refresh timed out")
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			report, err := t.refresher.Refresh(ctx, shop)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				logrus.WithError(err).WithFields(logrus.Fields{
					"shop_id": shop.ID,
					"url":     shop.URL,
				}).Warn("Price list refresh failed")
				return
			}
			summary.Succeeded++
			logrus.WithFields(logrus.Fields{
				"shop_id":          shop.ID,
				"listings_created": report.ListingsCreated,
				"listings_updated": report.ListingsUpdated,
			}).Debug("Price list refreshed")
		}()
	}

	wg.Wait()
	logrus.WithFields(logrus.Fields{
		"shops":     summary.Shops,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("Price list refresh finished")
	return summary
}
