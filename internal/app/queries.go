package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"customer_reviews/internal/domain"
	"customer_reviews/internal/serialize"
)

// Page is one slice of a serialized list. NextCursor is the id to pass as AfterID
// for the following page, set only when the page came back full.
type Page struct {
	Items      []map[string]any `json:"items"`
	NextCursor *int64           `json:"next_cursor,omitempty"`
}

type QueryService struct {
	store    domain.Store
	cache    domain.Cache
	cacheTTL time.Duration
}

// NewQueryService wires reads. cache may be nil.
func NewQueryService(st domain.Store, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{store: st, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetCustomer(ctx context.Context, id int64, exclude ...string) (map[string]any, error) {
	return cachedView(ctx, s, fmt.Sprintf("customer:%d", id), exclude, func(r domain.Repository) (map[string]any, error) {
		c, err := r.LoadCustomer(ctx, id)
		if err != nil {
			return nil, err
		}
		return render(c, exclude)
	})
}

func (s *QueryService) GetItem(ctx context.Context, id int64, exclude ...string) (map[string]any, error) {
	return cachedView(ctx, s, fmt.Sprintf("item:%d", id), exclude, func(r domain.Repository) (map[string]any, error) {
		it, err := r.LoadItem(ctx, id)
		if err != nil {
			return nil, err
		}
		return render(it, exclude)
	})
}

func (s *QueryService) GetReview(ctx context.Context, id int64, exclude ...string) (map[string]any, error) {
	return cachedView(ctx, s, fmt.Sprintf("review:%d", id), exclude, func(r domain.Repository) (map[string]any, error) {
		rv, err := r.LoadReview(ctx, id)
		if err != nil {
			return nil, err
		}
		return render(rv, exclude)
	})
}

// CustomerItems renders the customer's derived item collection.
func (s *QueryService) CustomerItems(ctx context.Context, id int64) ([]map[string]any, error) {
	return cachedView(ctx, s, fmt.Sprintf("customer:%d:items", id), nil, func(r domain.Repository) ([]map[string]any, error) {
		c, err := r.LoadCustomer(ctx, id)
		if err != nil {
			return nil, err
		}
		return renderAll(c.Items(), []string{"-reviews"})
	})
}

func (s *QueryService) ListCustomers(ctx context.Context, pg domain.PageQuery, exclude ...string) (Page, error) {
	return cachedView(ctx, s, pageKey("customers", pg), exclude, func(r domain.Repository) (Page, error) {
		cs, err := r.ListCustomers(ctx, pg)
		if err != nil {
			return Page{}, err
		}
		return page(cs, pg, func(c *domain.Customer) int64 { return c.ID }, exclude)
	})
}

func (s *QueryService) ListItems(ctx context.Context, pg domain.PageQuery, exclude ...string) (Page, error) {
	return cachedView(ctx, s, pageKey("items", pg), exclude, func(r domain.Repository) (Page, error) {
		its, err := r.ListItems(ctx, pg)
		if err != nil {
			return Page{}, err
		}
		return page(its, pg, func(it *domain.Item) int64 { return it.ID }, exclude)
	})
}

func (s *QueryService) ListReviews(ctx context.Context, pg domain.PageQuery, exclude ...string) (Page, error) {
	return cachedView(ctx, s, pageKey("reviews", pg), exclude, func(r domain.Repository) (Page, error) {
		rvs, err := r.ListReviews(ctx, pg)
		if err != nil {
			return Page{}, err
		}
		return page(rvs, pg, func(rv *domain.Review) int64 { return rv.ID }, exclude)
	})
}

func pageKey(kind string, pg domain.PageQuery) string {
	return fmt.Sprintf("%s:%d:%d", kind, pg.Limit, pg.AfterID)
}

func render(m serialize.Model, exclude []string) (map[string]any, error) {
	out, err := serialize.ToMap(m, exclude...)
	if errors.Is(err, serialize.ErrBadRule) {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	return out, err
}

func renderAll[M serialize.Model](ms []M, exclude []string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(ms))
	for _, m := range ms {
		v, err := render(m, exclude)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func page[M serialize.Model](ms []M, pg domain.PageQuery, id func(M) int64, exclude []string) (Page, error) {
	items, err := renderAll(ms, exclude)
	if err != nil {
		return Page{}, err
	}
	p := Page{Items: items}
	if pg.Limit > 0 && len(ms) == pg.Limit {
		next := id(ms[len(ms)-1])
		p.NextCursor = &next
	}
	return p, nil
}

// cachedView is cache-aside around a read-only transaction. Keys carry the current
// write generation, so a write anywhere retires every cached view at once. Any cache
// failure falls through to the store.
func cachedView[T any](ctx context.Context, s *QueryService, key string, exclude []string, load func(domain.Repository) (T, error)) (T, error) {
	fullKey, ok := s.versionedKey(ctx, key, exclude)
	var out T
	if ok {
		if hit, err := s.cache.Get(ctx, fullKey, &out); err == nil && hit {
			return out, nil
		} else if err != nil {
			log.Debug().Err(err).Str("key", fullKey).Msg("cache get failed")
		}
	}

	err := s.store.InTx(ctx, func(r domain.Repository) error {
		var err error
		out, err = load(r)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}

	// optional size guard
	if ok {
		if b, _ := json.Marshal(out); len(b) < 1_000_000 {
			if err := s.cache.Set(ctx, fullKey, out, int(s.cacheTTL.Seconds())); err != nil {
				log.Debug().Err(err).Str("key", fullKey).Msg("cache set failed")
			}
		}
	}
	return out, nil
}

func (s *QueryService) versionedKey(ctx context.Context, key string, exclude []string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	var gen int64
	if _, err := s.cache.Get(ctx, genKey, &gen); err != nil {
		log.Debug().Err(err).Msg("cache generation unavailable")
		return "", false
	}
	if len(exclude) > 0 {
		key += "|" + strings.Join(exclude, ",")
	}
	return fmt.Sprintf("v%d:%s", gen, key), true
}
