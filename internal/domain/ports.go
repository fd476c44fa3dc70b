package domain

import "context"

// Repository is the persistence surface bound to one session (a connection or a
// transaction). Callers get one from a Store per unit of work.
type Repository interface {
	// Write paths
	CreateCustomer(ctx context.Context, c *Customer) error
	UpdateCustomer(ctx context.Context, c *Customer) error
	DeleteCustomer(ctx context.Context, id int64) error
	CreateItem(ctx context.Context, it *Item) error
	UpdateItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, id int64) error
	CreateReview(ctx context.Context, r *Review) error
	UpdateReview(ctx context.Context, r *Review) error
	DeleteReview(ctx context.Context, id int64) error
	AppendItem(ctx context.Context, customerID, itemID int64) (*Review, error)

	// Flat reads, no relationships populated
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	GetItem(ctx context.Context, id int64) (*Item, error)
	GetReview(ctx context.Context, id int64) (*Review, error)

	// Graph reads, linked deep enough to serialize the root
	LoadCustomer(ctx context.Context, id int64) (*Customer, error)
	LoadItem(ctx context.Context, id int64) (*Item, error)
	LoadReview(ctx context.Context, id int64) (*Review, error)
	ListCustomers(ctx context.Context, pg PageQuery) ([]*Customer, error)
	ListItems(ctx context.Context, pg PageQuery) ([]*Item, error)
	ListReviews(ctx context.Context, pg PageQuery) ([]*Review, error)
}

// Store hands out sessions.
type Store interface {
	Session() Repository
	InTx(ctx context.Context, fn func(Repository) error) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// PageQuery selects rows in ascending id order starting after AfterID.
type PageQuery struct {
	Limit   int
	AfterID int64
}
