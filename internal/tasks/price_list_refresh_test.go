// internal/tasks/price_list_refresh_test.go
package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/retail-backend/internal/models"
	"github.com/javajoker/retail-backend/internal/services"
)

type fakeRefresher struct {
	shops   []models.Shop
	listErr error
	failing map[uuid.UUID]bool
	delay   time.Duration

	mu        sync.Mutex
	refreshed []uuid.UUID
	inFlight  int32
	peak      int32
}

func (f *fakeRefresher) RefreshableShops(context.Context) ([]models.Shop, error) {
	return f.shops, f.listErr
}

func (f *fakeRefresher) Refresh(ctx context.Context, shop models.Shop) (*services.ImportReport, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.refreshed = append(f.refreshed, shop.ID)
	f.mu.Unlock()

	if f.failing[shop.ID] {
		return nil, errors.New("fetch failed")
	}
	return &services.ImportReport{ShopID: shop.ID, ListingsUpdated: 1}, nil
}

func shopsWithURL(n int) []models.Shop {
	shops := make([]models.Shop, n)
	for i := range shops {
		shops[i].ID = uuid.New()
		shops[i].UserID = uuid.New()
		shops[i].URL = "https://supplier.test/" + shops[i].ID.String() + ".yaml"
	}
	return shops
}

func TestRunOnce_RefreshesEveryShop(t *testing.T) {
	shops := shopsWithURL(5)
	refresher := &fakeRefresher{
		shops:   shops,
		failing: map[uuid.UUID]bool{shops[1].ID: true},
	}
	task := NewPriceListRefreshTask(refresher, "@every 1h", 2)

	summary := task.RunOnce(context.Background())

	assert.Equal(t, RefreshSummary{Shops: 5, Succeeded: 4, Failed: 1}, summary)
	assert.Len(t, refresher.refreshed, 5)
}

func TestRunOnce_RespectsConcurrencyLimit(t *testing.T) {
	refresher := &fakeRefresher{shops: shopsWithURL(6), delay: 20 * time.Millisecond}
	task := NewPriceListRefreshTask(refresher, "@every 1h", 2)

	summary := task.RunOnce(context.Background())

	assert.Equal(t, 6, summary.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt32(&refresher.peak), int32(2))
}

func TestRunOnce_ListFailure(t *testing.T) {
	refresher := &fakeRefresher{listErr: errors.New("db down")}
	task := NewPriceListRefreshTask(refresher, "@every 1h", 0)

	assert.Equal(t, RefreshSummary{}, task.RunOnce(context.Background()))
	assert.Equal(t, 1, task.concurrencyLimit)
}

func TestRunOnce_SkipsOverlappingRun(t *testing.T) {
	refresher := &fakeRefresher{shops: shopsWithURL(1), delay: 100 * time.Millisecond}
	task := NewPriceListRefreshTask(refresher, "@every 1h", 1)

	done := make(chan RefreshSummary)
	go func() { done <- task.RunOnce(context.Background()) }()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&refresher.inFlight) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, RefreshSummary{}, task.RunOnce(context.Background()))
	assert.Equal(t, 1, (<-done).Succeeded)
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	task := NewPriceListRefreshTask(&fakeRefresher{}, "not a schedule", 1)
	assert.Error(t, task.Start())
}

func TestStart_Stop(t *testing.T) {
	task := NewPriceListRefreshTask(&fakeRefresher{}, "0 0 * * * *", 1)
	require.NoError(t, task.Start())
	task.Stop()
}
