// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/retail-backend/internal/config"
	"github.com/javajoker/retail-backend/internal/models"
	"github.com/javajoker/retail-backend/internal/queue"
)

const (
	JobOrderConfirmationRequest = "order_confirmation_request"
	JobOrderThankYou            = "order_thank_you"
	JobOrderStatusUpdate        = "order_status_update"
	JobShopNewOrder             = "shop_new_order"
	JobAccountActivation        = "account_activation"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

var templateNames = []string{
	JobOrderConfirmationRequest,
	JobOrderThankYou,
	JobOrderStatusUpdate,
	JobShopNewOrder,
	JobAccountActivation,
}

// NotificationService turns committed order events into queued email jobs
// and renders and delivers those jobs on the worker side.
type NotificationService struct {
	db        *gorm.DB
	queue     queue.Queue
	mailer    Mailer
	config    config.NotificationConfig
	templates map[string]*template.Template
}

type mailLine struct {
	ExternalID int64
	Name       string
	Model      string
	Shop       string
	Quantity   int
	Price      string
	Sum        string
}

type mailData struct {
	RecipientName string
	OrderID       uuid.UUID
	State         models.OrderState
	ShopName      string
	ConfirmURL    string
	ActivateURL   string
	Lines         []mailLine
	Total         string
	Contact       *models.Contact
}

func NewNotificationService(db *gorm.DB, q queue.Queue, mailer Mailer, cfg config.NotificationConfig) (*NotificationService, error) {
	templates, err := loadTemplates(cfg.TemplateRoot)
	if err != nil {
		return nil, err
	}

	return &NotificationService{
		db:        db,
		queue:     q,
		mailer:    mailer,
		config:    cfg,
		templates: templates,
	}, nil
}

// loadTemplates prefers <root>/<name>.html and falls back to the embedded copy.
func loadTemplates(root string) (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(templateNames))
	for _, name := range templateNames {
		file := name + ".html"

		var (
			content []byte
			err     error
		)
		if root != "" {
			content, err = os.ReadFile(filepath.Join(root, file))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read template %s: %w", file, err)
			}
		}
		if content == nil {
			content, err = defaultTemplates.ReadFile("templates/" + file)
			if err != nil {
				return nil, fmt.Errorf("missing template %s: %w", file, err)
			}
		}

		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", file, err)
		}
		templates[name] = tmpl
	}
	return templates, nil
}

// ConfirmationURL is the link mailed to the buyer.
func (s *NotificationService) ConfirmationURL(key string) string {
	return fmt.Sprintf("%s/v1/confirm/order?key=%s", s.config.BaseURL, url.QueryEscape(key))
}

// ActivationURL is the link mailed to a new account.
func (s *NotificationService) ActivationURL(email, key string) string {
	query := url.Values{"email": {email}, "key": {key}}
	return fmt.Sprintf("%s/v1/auth/activate?%s", s.config.BaseURL, query.Encode())
}

// Account observer

func (s *NotificationService) AccountRegistered(ctx context.Context, event AccountEvent) error {
	return s.queue.Enqueue(ctx, queue.NewJob(JobAccountActivation, map[string]string{
		"user_id": event.UserID.String(),
		"key":     event.ActivationKey,
	}))
}

// Order observer

func (s *NotificationService) OrderSubmitted(ctx context.Context, event OrderEvent) error {
	return s.queue.Enqueue(ctx, queue.NewJob(JobOrderConfirmationRequest, map[string]string{
		"order_id": event.OrderID.String(),
		"key":      event.ConfirmationKey,
	}))
}

func (s *NotificationService) OrderStateChanged(ctx context.Context, event OrderEvent) error {
	if !NotifiesBuyer(event.To) {
		return nil
	}
	return s.queue.Enqueue(ctx, queue.NewJob(JobOrderStatusUpdate, map[string]string{
		"order_id": event.OrderID.String(),
		"state":    string(event.To),
	}))
}

// OrderConfirmed queues the buyer thank-you and one message per involved shop.
func (s *NotificationService) OrderConfirmed(ctx context.Context, event OrderEvent) error {
	var errs []error
	if err := s.queue.Enqueue(ctx, queue.NewJob(JobOrderThankYou, map[string]string{
		"order_id": event.OrderID.String(),
	})); err != nil {
		errs = append(errs, err)
	}

	var shopIDs []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.OrderLine{}).
		Joins("JOIN product_listings ON product_listings.id = order_lines.listing_id").
		Where("order_lines.order_id = ?", event.OrderID).
		Distinct().
		Pluck("product_listings.shop_id", &shopIDs).Error; err != nil {
		return errors.Join(append(errs, fmt.Errorf("failed to resolve order shops: %w", err))...)
	}

	for _, shopID := range shopIDs {
		if err := s.queue.Enqueue(ctx, queue.NewJob(JobShopNewOrder, map[string]string{
			"order_id": event.OrderID.String(),
			"shop_id":  shopID.String(),
		})); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Worker side

// Handle renders and sends one job. Jobs for orders that no longer exist are dropped.
func (s *NotificationService) Handle(ctx context.Context, job queue.Job) error {
	if job.Type == JobAccountActivation {
		return s.handleActivation(ctx, job)
	}

	orderID, err := uuid.Parse(job.Payload["order_id"])
	if err != nil {
		logrus.WithField("job_id", job.ID).Error("Dropping notification job without order id")
		return nil
	}

	var msg *MailMessage
	switch job.Type {
	case JobOrderConfirmationRequest:
		msg, err = s.buyerMessage(ctx, orderID, job.Type, "Confirm your order", func(d *mailData) {
			d.ConfirmURL = s.ConfirmationURL(job.Payload["key"])
		})
	case JobOrderThankYou:
		msg, err = s.buyerMessage(ctx, orderID, job.Type, "Thank you for your order", nil)
	case JobOrderStatusUpdate:
		state := models.OrderState(job.Payload["state"])
		msg, err = s.buyerMessage(ctx, orderID, job.Type, fmt.Sprintf("Order status: %s", state), func(d *mailData) {
			d.State = state
		})
	case JobShopNewOrder:
		var shopID uuid.UUID
		shopID, err = uuid.Parse(job.Payload["shop_id"])
		if err != nil {
			logrus.WithField("job_id", job.ID).Error("Dropping shop notification without shop id")
			return nil
		}
		msg, err = s.shopMessage(ctx, orderID, shopID)
	default:
		return fmt.Errorf("unknown notification job type %q", job.Type)
	}

	if errors.Is(err, ErrNotFound) {
		logrus.WithError(err).WithFields(logrus.Fields{
			"job_id":   job.ID,
			"job_type": job.Type,
			"order_id": orderID,
		}).Warn("Dropping notification for missing record")
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, *msg); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"job_type": job.Type,
		"order_id": orderID,
		"attempt":  job.Attempt,
	}).Info("Notification sent")
	return nil
}

// handleActivation drops jobs for accounts that are gone or already active.
func (s *NotificationService) handleActivation(ctx context.Context, job queue.Job) error {
	entry := logrus.WithFields(logrus.Fields{"job_id": job.ID, "job_type": job.Type})

	userID, err := uuid.Parse(job.Payload["user_id"])
	if err != nil || job.Payload["key"] == "" {
		entry.Error("Dropping activation job without user id or key")
		return nil
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry.WithField("user_id", userID).Warn("Dropping activation for missing user")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.IsActive {
		entry.WithField("user_id", userID).Info("Account already active, skipping activation mail")
		return nil
	}

	body, err := s.render(JobAccountActivation, mailData{
		RecipientName: user.DisplayName(),
		ActivateURL:   s.ActivationURL(user.Email, job.Payload["key"]),
	})
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, MailMessage{
		To:      []string{user.Email},
		Subject: "Activate your account",
		HTML:    body,
	}); err != nil {
		return err
	}

	entry.WithFields(logrus.Fields{"user_id": userID, "attempt": job.Attempt}).Info("Notification sent")
	return nil
}

func (s *NotificationService) buyerMessage(ctx context.Context, orderID uuid.UUID, name, subject string, extra func(*mailData)) (*MailMessage, error) {
	var order models.Order
	if err := preloadOrder(s.db.WithContext(ctx), nil).
		Preload("User").
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, notFound("order", err)
	}
	if order.User == nil || order.User.Email == "" {
		return nil, fmt.Errorf("buyer of order %s has no email: %w", orderID, ErrNotFound)
	}

	data := newMailData(&order, order.User.DisplayName())
	if extra != nil {
		extra(&data)
	}

	body, err := s.render(name, data)
	if err != nil {
		return nil, err
	}
	return &MailMessage{
		To:      []string{order.User.Email},
		Subject: fmt.Sprintf("%s #%s", subject, shortID(orderID)),
		HTML:    body,
	}, nil
}

func (s *NotificationService) shopMessage(ctx context.Context, orderID, shopID uuid.UUID) (*MailMessage, error) {
	var shop models.Shop
	if err := s.db.WithContext(ctx).Preload("User").Where("id = ?", shopID).First(&shop).Error; err != nil {
		return nil, notFound("shop", err)
	}
	if shop.User == nil || shop.User.Email == "" {
		return nil, fmt.Errorf("operator of shop %s has no email: %w", shopID, ErrNotFound)
	}

	var order models.Order
	if err := preloadOrder(s.db.WithContext(ctx), &shopID).
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, notFound("order", err)
	}

	data := newMailData(&order, shop.User.DisplayName())
	data.ShopName = shop.Name

	body, err := s.render(JobShopNewOrder, data)
	if err != nil {
		return nil, err
	}
	return &MailMessage{
		To:      []string{shop.User.Email},
		Subject: fmt.Sprintf("New order #%s for %s", shortID(orderID), shop.Name),
		HTML:    body,
	}, nil
}

func (s *NotificationService) render(name string, data mailData) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("no template %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

func newMailData(order *models.Order, recipient string) mailData {
	total := order.ComputeTotal()
	lines := make([]mailLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		if line.Listing == nil {
			continue
		}
		l := mailLine{
			ExternalID: line.Listing.ExternalID,
			Model:      line.Listing.Model,
			Quantity:   line.Quantity,
			Price:      line.Listing.Price.StringFixed(2),
			Sum:        line.Listing.Price.Mul(decimal.NewFromInt(int64(line.Quantity))).StringFixed(2),
		}
		if line.Listing.Product != nil {
			l.Name = line.Listing.Product.Name
		}
		if line.Listing.Shop != nil {
			l.Shop = line.Listing.Shop.Name
		}
		lines = append(lines, l)
	}

	return mailData{
		RecipientName: recipient,
		OrderID:       order.ID,
		State:         order.State,
		Lines:         lines,
		Total:         total.StringFixed(2),
		Contact:       order.Contact,
	}
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
