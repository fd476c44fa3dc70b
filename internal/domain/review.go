package domain

import (
	"fmt"

	"customer_reviews/internal/serialize"
)

// Review is the join entity between Customer and Item. Either side may be unset.
type Review struct {
	ID         int64
	Comment    *string
	CustomerID *int64
	ItemID     *int64

	Customer *Customer
	Item     *Item
}

// Link points r at c and it and appends r to both reviews collections.
// A nil c or it leaves that side unset.
func Link(r *Review, c *Customer, it *Item) {
	if c != nil {
		r.Customer = c
		id := c.ID
		r.CustomerID = &id
		c.Reviews = append(c.Reviews, r)
	}
	if it != nil {
		r.Item = it
		id := it.ID
		r.ItemID = &id
		it.Reviews = append(it.Reviews, r)
	}
}

func (r *Review) SerializeFields() []serialize.Field {
	fs := []serialize.Field{
		{Name: "id", Value: r.ID},
		{Name: "comment", Value: strOrNil(r.Comment)},
		{Name: "customer_id", Value: i64OrNil(r.CustomerID)},
		{Name: "item_id", Value: i64OrNil(r.ItemID)},
		{Name: "customer", Value: nil},
		{Name: "item", Value: nil},
	}
	if r.Customer != nil {
		fs[4].Value = r.Customer
	}
	if r.Item != nil {
		fs[5].Value = r.Item
	}
	return fs
}

func (r *Review) SerializeRules() []string {
	return []string{"-customer.reviews", "-item.reviews"}
}

func (r *Review) String() string {
	return fmt.Sprintf("<Review %d, %s, Customer: %s, Item: %s>",
		r.ID, reprStr(r.Comment), reprInt(r.CustomerID), reprInt(r.ItemID))
}

func reviewModels(rs []*Review) []serialize.Model {
	out := make([]serialize.Model, 0, len(rs))
	for _, r := range rs {
		out = append(out, r)
	}
	return out
}
