package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"customer_reviews/internal/domain"
)

const defaultPageLimit = 50

// graph is the identity map for a single load: each row becomes exactly one object,
// and link wires both sides of every review once all rows are in.
//
// Loaders fetch what serialization of the root needs. Collections of objects other
// than the root may be partial; e.g. an item reached from a customer only carries
// that customer's reviews.
type graph struct {
	customers map[int64]*domain.Customer
	items     map[int64]*domain.Item
	reviews   map[int64]*domain.Review
}

func newGraph() *graph {
	return &graph{
		customers: map[int64]*domain.Customer{},
		items:     map[int64]*domain.Item{},
		reviews:   map[int64]*domain.Review{},
	}
}

func (g *graph) link() {
	ids := make([]int64, 0, len(g.reviews))
	for id := range g.reviews {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		rv := g.reviews[id]
		var c *domain.Customer
		var it *domain.Item
		if rv.CustomerID != nil {
			c = g.customers[*rv.CustomerID]
		}
		if rv.ItemID != nil {
			it = g.items[*rv.ItemID]
		}
		domain.Link(rv, c, it)
	}
}

func (g *graph) itemIDsOf(rvs []*domain.Review) []int64 {
	var out []int64
	for _, rv := range rvs {
		if rv.ItemID != nil {
			if _, ok := g.items[*rv.ItemID]; !ok {
				out = append(out, *rv.ItemID)
			}
		}
	}
	return out
}

func (g *graph) customerIDsOf(rvs []*domain.Review) []int64 {
	var out []int64
	for _, rv := range rvs {
		if rv.CustomerID != nil {
			if _, ok := g.customers[*rv.CustomerID]; !ok {
				out = append(out, *rv.CustomerID)
			}
		}
	}
	return out
}

func inList(ids []int64) (string, []any) {
	seen := make(map[int64]struct{}, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		args = append(args, id)
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(args)), ","), args
}

func (r *Repo) queryIn(ctx context.Context, tmpl string, ids []int64, each func(scanner) error) error {
	if len(ids) == 0 {
		return nil
	}
	ph, args := inList(ids)
	rows, err := r.q.QueryContext(ctx, fmt.Sprintf(tmpl, ph), args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *Repo) loadCustomers(ctx context.Context, g *graph, ids []int64) error {
	return r.queryIn(ctx, customersByIDsSQL, ids, func(s scanner) error {
		c, err := scanCustomer(s)
		if err != nil {
			return err
		}
		if _, ok := g.customers[c.ID]; !ok {
			g.customers[c.ID] = c
		}
		return nil
	})
}

func (r *Repo) loadItems(ctx context.Context, g *graph, ids []int64) error {
	return r.queryIn(ctx, itemsByIDsSQL, ids, func(s scanner) error {
		it, err := scanItem(s)
		if err != nil {
			return err
		}
		if _, ok := g.items[it.ID]; !ok {
			g.items[it.ID] = it
		}
		return nil
	})
}

func (r *Repo) loadReviews(ctx context.Context, g *graph, tmpl string, ids []int64) ([]*domain.Review, error) {
	var out []*domain.Review
	err := r.queryIn(ctx, tmpl, ids, func(s scanner) error {
		rv, err := scanReview(s)
		if err != nil {
			return err
		}
		if prev, ok := g.reviews[rv.ID]; ok {
			rv = prev
		} else {
			g.reviews[rv.ID] = rv
		}
		out = append(out, rv)
		return nil
	})
	return out, err
}

// loadCustomerClosure loads customers, all of their reviews, and the items those
// reviews point at. That is what a serialized customer needs.
func (r *Repo) loadCustomerClosure(ctx context.Context, g *graph, ids []int64) error {
	if err := r.loadCustomers(ctx, g, ids); err != nil {
		return err
	}
	rvs, err := r.loadReviews(ctx, g, reviewsByCustomersSQL, ids)
	if err != nil {
		return err
	}
	return r.loadItems(ctx, g, g.itemIDsOf(rvs))
}

// loadItemClosure loads items, their reviews, and the closure of each reviewer.
func (r *Repo) loadItemClosure(ctx context.Context, g *graph, ids []int64) error {
	if err := r.loadItems(ctx, g, ids); err != nil {
		return err
	}
	rvs, err := r.loadReviews(ctx, g, reviewsByItemsSQL, ids)
	if err != nil {
		return err
	}
	return r.loadCustomerClosure(ctx, g, g.customerIDsOf(rvs))
}

// loadReviewClosure loads reviews, the closure of each reviewer, and each item.
func (r *Repo) loadReviewClosure(ctx context.Context, g *graph, ids []int64) error {
	rvs, err := r.loadReviews(ctx, g, reviewsByIDsSQL, ids)
	if err != nil {
		return err
	}
	if err := r.loadCustomerClosure(ctx, g, g.customerIDsOf(rvs)); err != nil {
		return err
	}
	return r.loadItems(ctx, g, g.itemIDsOf(rvs))
}

func (r *Repo) pageIDs(ctx context.Context, query string, pg domain.PageQuery) ([]int64, error) {
	limit := pg.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	rows, err := r.q.QueryContext(ctx, query, pg.AfterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repo) LoadCustomer(ctx context.Context, id int64) (_ *domain.Customer, err error) {
	defer r.observe("load_customer", time.Now(), &err)
	g := newGraph()
	if err := r.loadCustomerClosure(ctx, g, []int64{id}); err != nil {
		return nil, fmt.Errorf("load customer %d: %w", id, err)
	}
	c, ok := g.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, domain.ErrNotFound)
	}
	g.link()
	return c, nil
}

func (r *Repo) LoadItem(ctx context.Context, id int64) (_ *domain.Item, err error) {
	defer r.observe("load_item", time.Now(), &err)
	g := newGraph()
	if err := r.loadItemClosure(ctx, g, []int64{id}); err != nil {
		return nil, fmt.Errorf("load item %d: %w", id, err)
	}
	it, ok := g.items[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	g.link()
	return it, nil
}

func (r *Repo) LoadReview(ctx context.Context, id int64) (_ *domain.Review, err error) {
	defer r.observe("load_review", time.Now(), &err)
	g := newGraph()
	if err := r.loadReviewClosure(ctx, g, []int64{id}); err != nil {
		return nil, fmt.Errorf("load review %d: %w", id, err)
	}
	rv, ok := g.reviews[id]
	if !ok {
		return nil, fmt.Errorf("review %d: %w", id, domain.ErrNotFound)
	}
	g.link()
	return rv, nil
}

func (r *Repo) ListCustomers(ctx context.Context, pg domain.PageQuery) (_ []*domain.Customer, err error) {
	defer r.observe("list_customers", time.Now(), &err)
	ids, err := r.pageIDs(ctx, pageCustomerIDsSQL, pg)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	g := newGraph()
	if err := r.loadCustomerClosure(ctx, g, ids); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	g.link()
	out := make([]*domain.Customer, 0, len(ids))
	for _, id := range ids {
		if c, ok := g.customers[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *Repo) ListItems(ctx context.Context, pg domain.PageQuery) (_ []*domain.Item, err error) {
	defer r.observe("list_items", time.Now(), &err)
	ids, err := r.pageIDs(ctx, pageItemIDsSQL, pg)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	g := newGraph()
	if err := r.loadItemClosure(ctx, g, ids); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	g.link()
	out := make([]*domain.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := g.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *Repo) ListReviews(ctx context.Context, pg domain.PageQuery) (_ []*domain.Review, err error) {
	defer r.observe("list_reviews", time.Now(), &err)
	ids, err := r.pageIDs(ctx, pageReviewIDsSQL, pg)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	g := newGraph()
	if err := r.loadReviewClosure(ctx, g, ids); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	g.link()
	out := make([]*domain.Review, 0, len(ids))
	for _, id := range ids {
		if rv, ok := g.reviews[id]; ok {
			out = append(out, rv)
		}
	}
	return out, nil
}
