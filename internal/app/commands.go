package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"customer_reviews/internal/domain"
)

// genKey is bumped after every committed write; query cache keys embed its value.
const genKey = "reviews:gen"

type CustomerInput struct {
	Name *string `json:"name" validate:"omitempty,max=255"`
}

type ItemInput struct {
	Name  *string  `json:"name" validate:"omitempty,max=255"`
	Price *float64 `json:"price" validate:"omitempty,gte=0"`
}

// ReviewInput creates a review, or patches one: nil fields are left unchanged.
type ReviewInput struct {
	Comment    *string `json:"comment" validate:"omitempty,max=2000"`
	CustomerID *int64  `json:"customer_id" validate:"omitempty,gt=0"`
	ItemID     *int64  `json:"item_id" validate:"omitempty,gt=0"`
}

type CommandService struct {
	store domain.Store
	cache domain.Cache
}

// NewCommandService wires writes. cache may be nil.
func NewCommandService(st domain.Store, cache domain.Cache) *CommandService {
	return &CommandService{store: st, cache: cache}
}

// write runs fn in one transaction and invalidates cached views after it commits.
func (s *CommandService) write(ctx context.Context, fn func(domain.Repository) error) error {
	if err := s.store.InTx(ctx, fn); err != nil {
		return err
	}
	if s.cache != nil {
		if _, err := s.cache.Incr(ctx, genKey); err != nil {
			log.Warn().Err(err).Msg("cache generation bump failed")
		}
	}
	return nil
}

func (s *CommandService) CreateCustomer(ctx context.Context, in CustomerInput) (int64, error) {
	if err := check(in); err != nil {
		return 0, err
	}
	c := &domain.Customer{Name: in.Name}
	err := s.write(ctx, func(r domain.Repository) error { return r.CreateCustomer(ctx, c) })
	if err != nil {
		return 0, err
	}
	log.Info().Int64("customer_id", c.ID).Msg("customer created")
	return c.ID, nil
}

func (s *CommandService) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) error {
	if err := check(in); err != nil {
		return err
	}
	return s.write(ctx, func(r domain.Repository) error {
		c, err := r.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			c.Name = in.Name
		}
		return r.UpdateCustomer(ctx, c)
	})
}

func (s *CommandService) DeleteCustomer(ctx context.Context, id int64) error {
	return s.write(ctx, func(r domain.Repository) error { return r.DeleteCustomer(ctx, id) })
}

// AppendItem adds itemID to the customer's derived items, creating one review.
func (s *CommandService) AppendItem(ctx context.Context, customerID, itemID int64) (int64, error) {
	var rv *domain.Review
	err := s.write(ctx, func(r domain.Repository) error {
		var err error
		rv, err = r.AppendItem(ctx, customerID, itemID)
		return err
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int64("customer_id", customerID).Int64("item_id", itemID).Int64("review_id", rv.ID).Msg("item appended")
	return rv.ID, nil
}

func (s *CommandService) CreateItem(ctx context.Context, in ItemInput) (int64, error) {
	if err := check(in); err != nil {
		return 0, err
	}
	it := &domain.Item{Name: in.Name, Price: in.Price}
	err := s.write(ctx, func(r domain.Repository) error { return r.CreateItem(ctx, it) })
	if err != nil {
		return 0, err
	}
	log.Info().Int64("item_id", it.ID).Msg("item created")
	return it.ID, nil
}

func (s *CommandService) UpdateItem(ctx context.Context, id int64, in ItemInput) error {
	if err := check(in); err != nil {
		return err
	}
	return s.write(ctx, func(r domain.Repository) error {
		it, err := r.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			it.Name = in.Name
		}
		if in.Price != nil {
			it.Price = in.Price
		}
		return r.UpdateItem(ctx, it)
	})
}

func (s *CommandService) DeleteItem(ctx context.Context, id int64) error {
	return s.write(ctx, func(r domain.Repository) error { return r.DeleteItem(ctx, id) })
}

// CreateReview inserts a review. Unknown customer or item ids fail in the store with
// a referential-integrity error.
func (s *CommandService) CreateReview(ctx context.Context, in ReviewInput) (int64, error) {
	if err := check(in); err != nil {
		return 0, err
	}
	rv := &domain.Review{Comment: in.Comment, CustomerID: in.CustomerID, ItemID: in.ItemID}
	err := s.write(ctx, func(r domain.Repository) error { return r.CreateReview(ctx, rv) })
	if err != nil {
		return 0, err
	}
	log.Info().Int64("review_id", rv.ID).Msg("review created")
	return rv.ID, nil
}

func (s *CommandService) UpdateReview(ctx context.Context, id int64, in ReviewInput) error {
	if err := check(in); err != nil {
		return err
	}
	return s.write(ctx, func(r domain.Repository) error {
		rv, err := r.GetReview(ctx, id)
		if err != nil {
			return err
		}
		if in.Comment != nil {
			rv.Comment = in.Comment
		}
		if in.CustomerID != nil {
			rv.CustomerID = in.CustomerID
		}
		if in.ItemID != nil {
			rv.ItemID = in.ItemID
		}
		return r.UpdateReview(ctx, rv)
	})
}

func (s *CommandService) DeleteReview(ctx context.Context, id int64) error {
	return s.write(ctx, func(r domain.Repository) error { return r.DeleteReview(ctx, id) })
}
