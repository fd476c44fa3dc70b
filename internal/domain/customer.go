package domain

import (
	"fmt"

	"customer_reviews/internal/serialize"
)

// Customer is a root entity. Its items are derived from its reviews.
type Customer struct {
	ID      int64
	Name    *string
	Reviews []*Review
}

// Items projects the customer's reviews onto the reviewed items, in review order.
// An item reviewed twice appears twice; reviews without an item are skipped.
func (c *Customer) Items() []*Item {
	out := make([]*Item, 0, len(c.Reviews))
	for _, r := range c.Reviews {
		if r.Item != nil {
			out = append(out, r.Item)
		}
	}
	return out
}

// AddItem appends it to the customer's items by constructing a new Review that
// links both. The review has no comment and no ID until it is persisted.
func (c *Customer) AddItem(it *Item) *Review {
	r := &Review{}
	Link(r, c, it)
	return r
}

func (c *Customer) SerializeFields() []serialize.Field {
	items := c.Items()
	im := make([]serialize.Model, 0, len(items))
	for _, it := range items {
		im = append(im, it)
	}
	return []serialize.Field{
		{Name: "id", Value: c.ID},
		{Name: "name", Value: strOrNil(c.Name)},
		{Name: "items", Value: im},
		{Name: "reviews", Value: reviewModels(c.Reviews)},
	}
}

func (c *Customer) SerializeRules() []string {
	return []string{"-reviews.customer", "-items.reviews"}
}

func (c *Customer) String() string {
	return fmt.Sprintf("<Customer %d, %s>", c.ID, reprStr(c.Name))
}
