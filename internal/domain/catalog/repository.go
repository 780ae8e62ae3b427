package catalog

import "context"

type Repository interface {
	CreateStore(ctx context.Context, store *Store) error
	StoreByID(ctx context.Context, id string) (*Store, error)
	StoresByOwner(ctx context.Context, ownerID string) ([]*Store, error)
	RenameStore(ctx context.Context, id, name string) error
	DeleteStore(ctx context.Context, id string) error

	CreateProduct(ctx context.Context, product *Product) error
	ProductByID(ctx context.Context, id string) (*Product, error)
	ActiveProducts(ctx context.Context) ([]*Product, error)
	UpdateProduct(ctx context.Context, product *Product) error
	DeleteProduct(ctx context.Context, id string) error

	AddReview(ctx context.Context, review *Review) error
	ReviewsByProduct(ctx context.Context, productID string) ([]*Review, error)
}
