// internal/services/helpers_test.go
package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/javajoker/retail-backend/internal/config"
	"github.com/javajoker/retail-backend/internal/database"
	"github.com/javajoker/retail-backend/internal/models"
	"github.com/javajoker/retail-backend/internal/queue"
)

const samplePriceList = `
shop: Svyaznoy
categories:
  - id: 224
    name: Smartphones
  - id: 15
    name: Accessories
goods:
  - id: 4216292
    category: 224
    model: apple/iphone/xs-max
    name: Apple iPhone XS Max 512GB (gold)
    price: 110000
    price_rrc: 116990
    quantity: 14
    parameters:
      "Screen (inch)": 6.5
      "Resolution (px)": 2688x1242
      "Memory (GB)": 512
      "Color": gold
  - id: 4216313
    category: 224
    model: apple/iphone/xr
    name: Apple iPhone XR 256GB (red)
    price: 65000
    price_rrc: 69990
    quantity: 9
    parameters:
      "Color": red
  - id: 4672670
    category: 15
    model: mophie/juice-pack
    name: Mophie Juice Pack Air
    price: 99.99
    price_rrc: 120
    quantity: 3
`

// singleItemPriceList has one product priced 100 with 5 in stock.
const singleItemPriceList = `
shop: Corner Store
categories:
  - id: 1
    name: Kettles
goods:
  - id: 1001
    category: 1
    model: k-100
    name: Steel Kettle
    price: 100
    price_rrc: 120
    quantity: 5
    parameters:
      Volume: 1.7 l
`

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig("silent"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database shared and serializes transactions.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.RunMigrations(db))
	return db
}

type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string][]byte
	err   error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[rawURL], nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Run(ctx context.Context, _ queue.Handler) error {
	<-ctx.Done()
	return nil
}

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) Jobs(jobType string) []queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queue.Job
	for _, job := range q.jobs {
		if job.Type == jobType {
			out = append(out, job)
		}
	}
	return out
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []MailMessage
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

type testEnv struct {
	db            *gorm.DB
	authz         *AuthorizationService
	catalog       *CatalogService
	imports       *ImportService
	orders        *OrderService
	contacts      *ContactService
	shops         *ShopService
	fetcher       *fakeFetcher
	queue         *recordingQueue
	mailer        *recordingMailer
	notifications *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	env := &testEnv{
		db:      db,
		fetcher: &fakeFetcher{docs: map[string][]byte{}},
		queue:   &recordingQueue{},
		mailer:  &recordingMailer{},
	}
	env.authz = NewAuthorizationService(db)
	env.catalog = NewCatalogService(db)
	env.imports = NewImportService(db, env.authz, env.fetcher, nil, config.IngestionConfig{MaxDocumentSize: 1 << 20})
	env.orders = NewOrderService(db, env.authz)
	env.contacts = NewContactService(db, env.authz, env.orders)
	env.shops = NewShopService(db, env.authz)

	notifications, err := NewNotificationService(db, env.queue, env.mailer, config.NotificationConfig{
		BaseURL: "http://shop.test",
	})
	require.NoError(t, err)
	env.notifications = notifications
	env.orders.Subscribe(notifications)

	return env
}

func (e *testEnv) user(t *testing.T, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Email:     uuid.NewString()[:8] + "@example.com",
		FirstName: string(role),
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) importDoc(t *testing.T, operatorID uuid.UUID, doc string) *ImportReport {
	t.Helper()
	report, err := e.imports.Import(context.Background(), operatorID, ImportRequest{Document: []byte(doc)})
	require.NoError(t, err)
	return report
}

func (e *testEnv) listing(t *testing.T, shopID uuid.UUID, externalID int64) models.ProductListing {
	t.Helper()
	var listing models.ProductListing
	require.NoError(t, e.db.Where("shop_id = ? AND external_id = ?", shopID, externalID).First(&listing).Error)
	return listing
}

func (e *testEnv) contact(t *testing.T, userID uuid.UUID) *models.Contact {
	t.Helper()
	contact, _, err := e.contacts.CreateContact(context.Background(), userID, &ContactRequest{
		City:   "Moscow",
		Street: "Tverskaya",
		House:  "7",
		Phone:  "+7 (495) 123-45-67",
	})
	require.NoError(t, err)
	return contact
}
