package domain

import (
	"fmt"

	"customer_reviews/internal/serialize"
)

type Item struct {
	ID      int64
	Name    *string
	Price   *float64
	Reviews []*Review
}

func (it *Item) SerializeFields() []serialize.Field {
	return []serialize.Field{
		{Name: "id", Value: it.ID},
		{Name: "name", Value: strOrNil(it.Name)},
		{Name: "price", Value: f64OrNil(it.Price)},
		{Name: "reviews", Value: reviewModels(it.Reviews)},
	}
}

func (it *Item) SerializeRules() []string { return []string{"-reviews.item"} }

func (it *Item) String() string {
	price := "None"
	if it.Price != nil {
		price = fmt.Sprint(*it.Price)
	}
	return fmt.Sprintf("<Item %d, %s, %s>", it.ID, reprStr(it.Name), price)
}
