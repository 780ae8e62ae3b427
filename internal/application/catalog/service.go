package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domain "github.com/mossvale/marketplace/internal/domain/catalog"
	"github.com/mossvale/marketplace/internal/domain/identity"
	"github.com/mossvale/marketplace/internal/domain/order"
	"github.com/mossvale/marketplace/internal/pkg/logging"
)

type IDGenerator interface {
	NewID() string
}

// Service covers the ordinary record management around the core: vendor
// store/product CRUD gated by ownership, buyer browsing, and reviews.
type Service struct {
	catalog domain.Repository
	orders  order.Repository
	idGen   IDGenerator
}

func NewService(catalog domain.Repository, orders order.Repository, idGen IDGenerator) *Service {
	return &Service{catalog: catalog, orders: orders, idGen: idGen}
}

func (s *Service) CreateStore(ctx context.Context, vendor *identity.User, name string) (*domain.Store, error) {
	if !vendor.Can(identity.CapVendor) {
		return nil, identity.ErrForbidden
	}
	store, err := domain.NewStore(s.idGen.NewID(), vendor.ID, name)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.CreateStore(ctx, store); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("store_created",
		zap.String("store_id", store.ID),
		zap.String("owner_id", vendor.ID),
	)
	return store, nil
}

func (s *Service) RenameStore(ctx context.Context, vendor *identity.User, storeID, name string) error {
	store, err := s.ownedStore(ctx, vendor, storeID)
	if err != nil {
		return err
	}
	renamed, err := domain.NewStore(store.ID, store.OwnerID, name)
	if err != nil {
		return err
	}
	return s.catalog.RenameStore(ctx, store.ID, renamed.Name)
}

func (s *Service) DeleteStore(ctx context.Context, vendor *identity.User, storeID string) error {
	store, err := s.ownedStore(ctx, vendor, storeID)
	if err != nil {
		return err
	}
	return s.catalog.DeleteStore(ctx, store.ID)
}

func (s *Service) StoresByOwner(ctx context.Context, vendor *identity.User) ([]*domain.Store, error) {
	if !vendor.Can(identity.CapVendor) {
		return nil, identity.ErrForbidden
	}
	return s.catalog.StoresByOwner(ctx, vendor.ID)
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	StockQty    int
	Active      bool
}

func (s *Service) CreateProduct(ctx context.Context, vendor *identity.User, storeID string, input ProductInput) (*domain.Product, error) {
	store, err := s.ownedStore(ctx, vendor, storeID)
	if err != nil {
		return nil, err
	}
	product, err := domain.NewProduct(s.idGen.NewID(), store.ID, input.Name, input.Description, input.Price, input.StockQty)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct rewrites the live product record. Existing order lines
// keep their unit-price snapshots regardless of what changes here.
func (s *Service) UpdateProduct(ctx context.Context, vendor *identity.User, productID string, input ProductInput) (*domain.Product, error) {
	product, err := s.ownedProduct(ctx, vendor, productID)
	if err != nil {
		return nil, err
	}
	updated, err := domain.NewProduct(product.ID, product.StoreID, input.Name, input.Description, input.Price, input.StockQty)
	if err != nil {
		return nil, err
	}
	updated.Active = input.Active
	if err := s.catalog.UpdateProduct(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, vendor *identity.User, productID string) error {
	product, err := s.ownedProduct(ctx, vendor, productID)
	if err != nil {
		return err
	}
	return s.catalog.DeleteProduct(ctx, product.ID)
}

func (s *Service) ActiveProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.catalog.ActiveProducts(ctx)
}

// Product resolves a single active product, as seen by buyers.
func (s *Service) Product(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.catalog.ProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

type ProductDetail struct {
	Product *domain.Product
	Store   *domain.Store
	Reviews []*domain.Review
}

func (s *Service) ProductDetail(ctx context.Context, productID string) (*ProductDetail, error) {
	product, err := s.catalog.ProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, domain.ErrProductNotFound
	}
	store, err := s.catalog.StoreByID(ctx, product.StoreID)
	if err != nil {
		return nil, err
	}
	reviews, err := s.catalog.ReviewsByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &ProductDetail{Product: product, Store: store, Reviews: reviews}, nil
}

// AddReview records a buyer review, marking it verified when the buyer has
// actually purchased the product before.
func (s *Service) AddReview(ctx context.Context, buyer *identity.User, productID string, rating int, comment string) (*domain.Review, error) {
	if !buyer.Can(identity.CapBuyer) {
		return nil, identity.ErrForbidden
	}
	product, err := s.catalog.ProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, domain.ErrProductNotFound
	}

	verified, err := s.orders.HasPurchased(ctx, buyer.ID, product.ID)
	if err != nil {
		return nil, fmt.Errorf("catalog: verify purchase: %w", err)
	}

	review := domain.NewReview(s.idGen.NewID(), product.ID, buyer.ID, rating, comment, verified)
	if err := s.catalog.AddReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *Service) ownedStore(ctx context.Context, vendor *identity.User, storeID string) (*domain.Store, error) {
	if !vendor.Can(identity.CapVendor) {
		return nil, identity.ErrForbidden
	}
	store, err := s.catalog.StoreByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if !store.OwnedBy(vendor.ID) {
		return nil, domain.ErrNotOwner
	}
	return store, nil
}

func (s *Service) ownedProduct(ctx context.Context, vendor *identity.User, productID string) (*domain.Product, error) {
	product, err := s.catalog.ProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedStore(ctx, vendor, product.StoreID); err != nil {
		return nil, err
	}
	return product, nil
}
