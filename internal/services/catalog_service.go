// internal/services/catalog_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/retail-backend/internal/models"
	"github.com/javajoker/retail-backend/internal/utils"
)

// CatalogService serves buyer-facing reads. Only listings of shops that accept
// orders are visible here.
type CatalogService struct {
	db *gorm.DB
}

type ListingFilter struct {
	utils.PaginationParams
	ProductID  *uuid.UUID
	ShopID     *uuid.UUID
	CategoryID *uuid.UUID
	ExternalID *int64
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	return categories, nil
}

func (s *CatalogService) ListShops(ctx context.Context) ([]models.Shop, error) {
	var shops []models.Shop
	if err := s.db.WithContext(ctx).
		Where("accepting_orders = ?", true).
		Order("name ASC").
		Find(&shops).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch shops: %w", err)
	}
	return shops, nil
}

func (s *CatalogService) SearchListings(ctx context.Context, filter ListingFilter) (*utils.PaginationResult, error) {
	params := utils.NormalizePagination(filter.PaginationParams)

	query := s.visibleListings(ctx)
	if filter.ProductID != nil {
		query = query.Where("product_listings.product_id = ?", *filter.ProductID)
	}
	if filter.ShopID != nil {
		query = query.Where("product_listings.shop_id = ?", *filter.ShopID)
	}
	if filter.CategoryID != nil {
		query = query.Joins("JOIN products ON products.id = product_listings.product_id").
			Where("products.category_id = ?", *filter.CategoryID)
	}
	if filter.ExternalID != nil {
		query = query.Where("product_listings.external_id = ?", *filter.ExternalID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}

	var listings []models.ProductListing
	query = utils.ApplySort(query, "product_listings", params, []string{"created_at", "price", "quantity", "external_id"})
	query = utils.ApplyPagination(query, params)
	if err := preloadListing(query, "").Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}

	result := utils.CreatePaginationResult(listings, total, params)
	return &result, nil
}

func (s *CatalogService) GetListing(ctx context.Context, id uuid.UUID) (*models.ProductListing, error) {
	var listing models.ProductListing
	err := preloadListing(s.visibleListings(ctx), "").
		Where("product_listings.id = ?", id).
		First(&listing).Error
	if err != nil {
		return nil, notFound("listing", err)
	}
	return &listing, nil
}

func (s *CatalogService) visibleListings(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.ProductListing{}).
		Joins("JOIN shops ON shops.id = product_listings.shop_id").
		Where("shops.accepting_orders = ?", true)
}

// preloadListing loads the product detail buyers see with a listing.
// prefix addresses a listing nested in another model, e.g. "Lines.Listing.".
func preloadListing(db *gorm.DB, prefix string) *gorm.DB {
	return db.
		Preload(prefix + "Product.Category").
		Preload(prefix + "Shop").
		Preload(prefix + "Parameters")
}
