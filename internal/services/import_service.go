// internal/services/import_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/retail-backend/internal/config"
	"github.com/javajoker/retail-backend/internal/database"
	"github.com/javajoker/retail-backend/internal/models"
)

// ImportService replaces a shop's catalog contribution from a price list.
type ImportService struct {
	db            *gorm.DB
	authz         *AuthorizationService
	fetcher       PriceListFetcher
	storage       *StorageService
	maxSize       int64
	archiveUpload bool
}

// ImportRequest carries exactly one source: an inline document or a URL.
type ImportRequest struct {
	Document []byte
	URL      string
}

type ImportReport struct {
	ShopID          uuid.UUID `json:"shop_id"`
	ShopName        string    `json:"shop_name"`
	Categories      int       `json:"categories"`
	ProductsCreated int       `json:"products_created"`
	ListingsCreated int       `json:"listings_created"`
	ListingsUpdated int       `json:"listings_updated"`
	ListingsRemoved int       `json:"listings_removed"`
	ListingsRetired int       `json:"listings_retired"`
	ArchiveURL      string    `json:"archive_url,omitempty"`
}

func NewImportService(db *gorm.DB, authz *AuthorizationService, fetcher PriceListFetcher, storage *StorageService, cfg config.IngestionConfig) *ImportService {
	return &ImportService{
		db:            db,
		authz:         authz,
		fetcher:       fetcher,
		storage:       storage,
		maxSize:       cfg.MaxDocumentSize,
		archiveUpload: cfg.ArchiveUploads,
	}
}

// Import fetches (when given a URL), parses and applies a price list for the operator's shop.
// Any failure before commit leaves the catalog untouched.
func (s *ImportService) Import(ctx context.Context, operatorID uuid.UUID, req ImportRequest) (*ImportReport, error) {
	if _, err := s.authz.Authorize(ctx, operatorID, CapIngestPriceList); err != nil {
		return nil, err
	}

	data := req.Document
	if req.URL != "" {
		if _, err := ValidateSourceURL(req.URL); err != nil {
			return nil, err
		}
		fetched, err := s.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"operator_id": operatorID,
				"url":         req.URL,
			}).Warn("Price list fetch failed")
			return nil, err
		}
		data = fetched
	}

	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, documentTooLarge(s.maxSize)
	}

	doc, err := ParsePriceList(data)
	if err != nil {
		return nil, err
	}

	report, err := s.Apply(ctx, operatorID, doc, req.URL)
	if err != nil {
		return nil, err
	}

	if req.URL == "" && s.archiveUpload && s.storage != nil {
		if archived, err := s.storage.ArchivePriceList(ctx, report.ShopID, data); err != nil {
			logrus.WithError(err).WithField("shop_id", report.ShopID).Warn("Failed to archive price list")
		} else {
			report.ArchiveURL = archived.URL
		}
	}

	logrus.WithFields(logrus.Fields{
		"shop_id":          report.ShopID,
		"listings_created": report.ListingsCreated,
		"listings_updated": report.ListingsUpdated,
		"listings_removed": report.ListingsRemoved,
		"listings_retired": report.ListingsRetired,
	}).Info("Price list imported")

	return report, nil
}

// Apply writes a parsed document in a single transaction. sourceURL, when set,
// is remembered on the shop for scheduled refreshes.
func (s *ImportService) Apply(ctx context.Context, operatorID uuid.UUID, doc *PriceListDocument, sourceURL string) (*ImportReport, error) {
	report := &ImportReport{}

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		shop, err := s.resolveShop(tx, operatorID, doc.Shop, sourceURL)
		if err != nil {
			return err
		}
		report.ShopID = shop.ID
		report.ShopName = shop.Name

		categories, err := s.resolveCategories(tx, shop, doc.Categories)
		if err != nil {
			return err
		}
		report.Categories = len(categories)

		var existing []models.ProductListing
		if err := tx.Where("shop_id = ?", shop.ID).Find(&existing).Error; err != nil {
			return fmt.Errorf("failed to load shop listings: %w", err)
		}
		byExternal := make(map[int64]uuid.UUID, len(existing))
		for _, l := range existing {
			byExternal[l.ExternalID] = l.ID
		}

		seen := make(map[int64]bool, len(doc.Goods))
		for _, good := range doc.Goods {
			seen[good.ID] = true

			product, created, err := getOrCreateProduct(tx, good.Name, categories[good.Category].ID)
			if err != nil {
				return err
			}
			if created {
				report.ProductsCreated++
			}

			listingID, err := upsertListing(tx, shop.ID, product.ID, good)
			if err != nil {
				return err
			}
			if _, ok := byExternal[good.ID]; ok {
				report.ListingsUpdated++
			} else {
				report.ListingsCreated++
			}

			if err := replaceParameters(tx, listingID, good.Parameters); err != nil {
				return err
			}
		}

		var absent []uuid.UUID
		for externalID, id := range byExternal {
			if !seen[externalID] {
				absent = append(absent, id)
			}
		}
		removed, retired, err := dropAbsentListings(tx, absent)
		if err != nil {
			return err
		}
		report.ListingsRemoved = removed
		report.ListingsRetired = retired

		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateListingKey, err)
		}
		return nil, err
	}

	return report, nil
}

// RefreshableShops lists shops that remember a price-list URL.
func (s *ImportService) RefreshableShops(ctx context.Context) ([]models.Shop, error) {
	var shops []models.Shop
	if err := s.db.WithContext(ctx).Where("url <> ''").Order("created_at ASC").Find(&shops).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch shops: %w", err)
	}
	return shops, nil
}

// Refresh re-imports a shop from its stored URL on behalf of its operator.
func (s *ImportService) Refresh(ctx context.Context, shop models.Shop) (*ImportReport, error) {
	if shop.URL == "" {
		return nil, fmt.Errorf("shop %s has no price list url: %w", shop.ID, ErrNotFound)
	}
	return s.Import(ctx, shop.UserID, ImportRequest{URL: shop.URL})
}

func (s *ImportService) resolveShop(tx *gorm.DB, operatorID uuid.UUID, name, sourceURL string) (*models.Shop, error) {
	candidate := models.Shop{Name: name, URL: sourceURL, UserID: operatorID, AcceptingOrders: true}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&candidate).Error; err != nil {
		return nil, fmt.Errorf("failed to create shop: %w", err)
	}

	// Locking the shop row serializes concurrent imports for the same shop.
	var shop models.Shop
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", operatorID).
		First(&shop).Error; err != nil {
		return nil, fmt.Errorf("failed to load shop: %w", err)
	}

	updates := map[string]interface{}{"name": name}
	if sourceURL != "" {
		updates["url"] = sourceURL
	}
	if err := tx.Model(&shop).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update shop: %w", err)
	}
	shop.Name = name

	return &shop, nil
}

func (s *ImportService) resolveCategories(tx *gorm.DB, shop *models.Shop, declared []PriceListCategory) (map[int64]models.Category, error) {
	resolved := make(map[int64]models.Category, len(declared))
	list := make([]models.Category, 0, len(declared))

	for _, c := range declared {
		candidate := models.Category{Name: c.Name}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&candidate).Error; err != nil {
			return nil, fmt.Errorf("failed to create category %q: %w", c.Name, err)
		}

		var category models.Category
		if err := tx.Where("name = ?", c.Name).First(&category).Error; err != nil {
			return nil, fmt.Errorf("failed to load category %q: %w", c.Name, err)
		}
		resolved[c.ID] = category
		list = append(list, category)
	}

	if err := tx.Model(shop).Association("Categories").Replace(list); err != nil {
		return nil, fmt.Errorf("failed to link shop categories: %w", err)
	}

	return resolved, nil
}

func getOrCreateProduct(tx *gorm.DB, name string, categoryID uuid.UUID) (*models.Product, bool, error) {
	var product models.Product
	err := tx.Where("name = ? AND category_id = ?", name, categoryID).First(&product).Error
	if err == nil {
		return &product, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to load product %q: %w", name, err)
	}

	candidate := models.Product{Name: name, CategoryID: categoryID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "category_id"}},
		DoNothing: true,
	}).Create(&candidate).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create product %q: %w", name, err)
	}

	if err := tx.Where("name = ? AND category_id = ?", name, categoryID).First(&product).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load product %q: %w", name, err)
	}
	return &product, product.ID == candidate.ID, nil
}

func upsertListing(tx *gorm.DB, shopID, productID uuid.UUID, good PriceListGood) (uuid.UUID, error) {
	listing := models.ProductListing{
		ShopID:     shopID,
		ProductID:  productID,
		ExternalID: good.ID,
		Model:      good.Model,
		Quantity:   good.Quantity,
		Price:      good.Price,
		PriceRRC:   good.PriceRRC,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"product_id", "model", "quantity", "price", "price_rrc", "updated_at"}),
	}).Create(&listing).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert listing %d: %w", good.ID, err)
	}

	var saved models.ProductListing
	if err := tx.Select("id").
		Where("shop_id = ? AND external_id = ?", shopID, good.ID).
		First(&saved).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to load listing %d: %w", good.ID, err)
	}
	return saved.ID, nil
}

// replaceParameters swaps the whole parameter set so stale names never survive.
func replaceParameters(tx *gorm.DB, listingID uuid.UUID, params map[string]string) error {
	if err := tx.Where("listing_id = ?", listingID).Delete(&models.ListingParameter{}).Error; err != nil {
		return fmt.Errorf("failed to clear listing parameters: %w", err)
	}
	if len(params) == 0 {
		return nil
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]models.ListingParameter, 0, len(names))
	for _, name := range names {
		rows = append(rows, models.ListingParameter{ListingID: listingID, Name: name, Value: params[name]})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert listing parameters: %w", err)
	}
	return nil
}

// dropAbsentListings deletes listings no order references and zeroes the rest,
// so historical orders keep their lines.
func dropAbsentListings(tx *gorm.DB, ids []uuid.UUID) (removed, retired int, err error) {
	if len(ids) == 0 {
		return 0, 0, nil
	}

	var referenced []uuid.UUID
	if err := tx.Model(&models.OrderLine{}).
		Where("listing_id IN ?", ids).
		Distinct().
		Pluck("listing_id", &referenced).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to check listing references: %w", err)
	}

	keep := make(map[uuid.UUID]bool, len(referenced))
	for _, id := range referenced {
		keep[id] = true
	}

	var deletable []uuid.UUID
	for _, id := range ids {
		if !keep[id] {
			deletable = append(deletable, id)
		}
	}

	if len(referenced) > 0 {
		if err := tx.Model(&models.ProductListing{}).
			Where("id IN ?", referenced).
			Update("quantity", 0).Error; err != nil {
			return 0, 0, fmt.Errorf("failed to retire listings: %w", err)
		}
	}

	if len(deletable) > 0 {
		if err := tx.Where("listing_id IN ?", deletable).Delete(&models.ListingParameter{}).Error; err != nil {
			return 0, 0, fmt.Errorf("failed to delete listing parameters: %w", err)
		}
		if err := tx.Where("id IN ?", deletable).Delete(&models.ProductListing{}).Error; err != nil {
			return 0, 0, fmt.Errorf("failed to delete listings: %w", err)
		}
	}

	return len(deletable), len(referenced), nil
}
