package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"customer_reviews/internal/adapters/observability"
	"customer_reviews/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}
func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
func nullF64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

// Repo implements domain.Repository on top of one session.
type Repo struct{ q DBTX }

// NewRepo binds a Repo to q, typically a *sql.Tx owned by the caller.
func NewRepo(q DBTX) *Repo { return &Repo{q: q} }

func (r *Repo) observe(op string, start time.Time, err *error) {
	observability.ObserveDB(op, resultLabel(*err), time.Since(start))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrReferentialIntegrity):
		return "integrity"
	case errors.Is(err, domain.ErrDuplicate):
		return "duplicate"
	default:
		return "error"
	}
}

type scanner interface{ Scan(dest ...any) error }

func scanCustomer(s scanner) (*domain.Customer, error) {
	var c domain.Customer
	var name sql.NullString
	if err := s.Scan(&c.ID, &name); err != nil {
		return nil, err
	}
	c.Name = nullStr(name)
	return &c, nil
}

func scanItem(s scanner) (*domain.Item, error) {
	var it domain.Item
	var name sql.NullString
	var price sql.NullFloat64
	if err := s.Scan(&it.ID, &name, &price); err != nil {
		return nil, err
	}
	it.Name = nullStr(name)
	it.Price = nullF64(price)
	return &it, nil
}

func scanReview(s scanner) (*domain.Review, error) {
	var rv domain.Review
	var comment sql.NullString
	var customerID, itemID sql.NullInt64
	if err := s.Scan(&rv.ID, &comment, &customerID, &itemID); err != nil {
		return nil, err
	}
	rv.Comment = nullStr(comment)
	rv.CustomerID = nullInt64(customerID)
	rv.ItemID = nullInt64(itemID)
	return &rv, nil
}

func notFound(kind string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", kind, id, err)
}

func (r *Repo) insert(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrap(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", op, err)
	}
	return id, nil
}

func (r *Repo) exec(ctx context.Context, op, query string, args ...any) error {
	_, err := r.q.ExecContext(ctx, query, args...)
	return wrap(op, err)
}

func (r *Repo) delete(ctx context.Context, kind, query string, id int64) error {
	res, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return wrap("delete "+kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: rows affected: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}

// ---- customers ----

func (r *Repo) CreateCustomer(ctx context.Context, c *domain.Customer) (err error) {
	defer r.observe("create_customer", time.Now(), &err)
	c.ID, err = r.insert(ctx, "create customer", insertCustomerSQL, valStr(c.Name))
	return err
}

func (r *Repo) UpdateCustomer(ctx context.Context, c *domain.Customer) (err error) {
	defer r.observe("update_customer", time.Now(), &err)
	return r.exec(ctx, "update customer", updateCustomerSQL, valStr(c.Name), c.ID)
}

// DeleteCustomer fails with an IntegrityError while any review references the customer.
func (r *Repo) DeleteCustomer(ctx context.Context, id int64) (err error) {
	defer r.observe("delete_customer", time.Now(), &err)
	return r.delete(ctx, "customer", deleteCustomerSQL, id)
}

func (r *Repo) GetCustomer(ctx context.Context, id int64) (_ *domain.Customer, err error) {
	defer r.observe("get_customer", time.Now(), &err)
	c, err := scanCustomer(r.q.QueryRowContext(ctx, selectCustomerSQL, id))
	if err != nil {
		return nil, notFound("customer", id, err)
	}
	return c, nil
}

// ---- items ----

func (r *Repo) CreateItem(ctx context.Context, it *domain.Item) (err error) {
	defer r.observe("create_item", time.Now(), &err)
	it.ID, err = r.insert(ctx, "create item", insertItemSQL, valStr(it.Name), valF64(it.Price))
	return err
}

func (r *Repo) UpdateItem(ctx context.Context, it *domain.Item) (err error) {
	defer r.observe("update_item", time.Now(), &err)
	return r.exec(ctx, "update item", updateItemSQL, valStr(it.Name), valF64(it.Price), it.ID)
}

// DeleteItem fails with an IntegrityError while any review references the item.
func (r *Repo) DeleteItem(ctx context.Context, id int64) (err error) {
	defer r.observe("delete_item", time.Now(), &err)
	return r.delete(ctx, "item", deleteItemSQL, id)
}

func (r *Repo) GetItem(ctx context.Context, id int64) (_ *domain.Item, err error) {
	defer r.observe("get_item", time.Now(), &err)
	it, err := scanItem(r.q.QueryRowContext(ctx, selectItemSQL, id))
	if err != nil {
		return nil, notFound("item", id, err)
	}
	return it, nil
}

// ---- reviews ----

func (r *Repo) CreateReview(ctx context.Context, rv *domain.Review) (err error) {
	defer r.observe("create_review", time.Now(), &err)
	rv.ID, err = r.insert(ctx, "create review", insertReviewSQL,
		valStr(rv.Comment), valInt64(rv.CustomerID), valInt64(rv.ItemID))
	return err
}

func (r *Repo) UpdateReview(ctx context.Context, rv *domain.Review) (err error) {
	defer r.observe("update_review", time.Now(), &err)
	return r.exec(ctx, "update review", updateReviewSQL,
		valStr(rv.Comment), valInt64(rv.CustomerID), valInt64(rv.ItemID), rv.ID)
}

func (r *Repo) DeleteReview(ctx context.Context, id int64) (err error) {
	defer r.observe("delete_review", time.Now(), &err)
	return r.delete(ctx, "review", deleteReviewSQL, id)
}

func (r *Repo) GetReview(ctx context.Context, id int64) (_ *domain.Review, err error) {
	defer r.observe("get_review", time.Now(), &err)
	rv, err := scanReview(r.q.QueryRowContext(ctx, selectReviewSQL, id))
	if err != nil {
		return nil, notFound("review", id, err)
	}
	return rv, nil
}

// AppendItem is the persistent form of Customer.AddItem: it inserts one review with
// no comment linking the customer and the item. Both must exist.
func (r *Repo) AppendItem(ctx context.Context, customerID, itemID int64) (*domain.Review, error) {
	c, err := r.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	it, err := r.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	rv := c.AddItem(it)
	if err := r.CreateReview(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

var _ domain.Repository = (*Repo)(nil)
