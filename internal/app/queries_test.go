package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customer_reviews/internal/app"
	"customer_reviews/internal/domain"
	"customer_reviews/internal/storage/sqlstore"
)

// ---- fakes ----

// fakeCache round-trips values through JSON like the redis adapter does.
type fakeCache struct {
	store map[string][]byte
	fail  bool
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.fail {
		return false, errors.New("cache down")
	}
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.fail {
		return errors.New("cache down")
	}
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}

func (c *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	if c.fail {
		return 0, errors.New("cache down")
	}
	var n int64
	if b, ok := c.store[key]; ok {
		_ = json.Unmarshal(b, &n)
	}
	n++
	return n, c.Set(ctx, key, n, 0)
}

// ---- helpers ----

func ptr[T any](v T) *T { return &v }

func newServices(t *testing.T, cache domain.Cache) (*sqlstore.Store, *app.CommandService, *app.QueryService) {
	t.Helper()
	st, err := sqlstore.Open(context.Background(), sqlstore.SQLite, filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, app.NewCommandService(st, cache), app.NewQueryService(st, cache, 10*time.Minute)
}

// ---- tests ----

func TestGetCustomer_CacheMissThenHitThenInvalidated(t *testing.T) {
	cache := &fakeCache{}
	st, cmd, q := newServices(t, cache)
	ctx := context.Background()

	id, err := cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("Ada")})
	require.NoError(t, err)

	// Miss (first time, populates cache)
	v, err := q.GetCustomer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", v["name"])

	// Write behind the services' back; the cached view must still be served
	c := &domain.Customer{ID: id, Name: ptr("SHOULD NOT SEE THIS")}
	require.NoError(t, st.Session().UpdateCustomer(ctx, c))
	v, err = q.GetCustomer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", v["name"])

	// A command bumps the generation, retiring the cached view
	require.NoError(t, cmd.UpdateCustomer(ctx, id, app.CustomerInput{Name: ptr("Ada L.")}))
	v, err = q.GetCustomer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", v["name"])
}

func TestQueries_WorkWithoutCacheOrWithBrokenCache(t *testing.T) {
	for name, cache := range map[string]domain.Cache{"nil": nil, "broken": &fakeCache{fail: true}} {
		t.Run(name, func(t *testing.T) {
			_, cmd, q := newServices(t, cache)
			ctx := context.Background()

			id, err := cmd.CreateItem(ctx, app.ItemInput{Name: ptr("Widget"), Price: ptr(9.99)})
			require.NoError(t, err)
			v, err := q.GetItem(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, 9.99, v["price"])
		})
	}
}

func TestAppendItem_ShowsUpOnBothSides(t *testing.T) {
	_, cmd, q := newServices(t, &fakeCache{})
	ctx := context.Background()

	cid, err := cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("Ada")})
	require.NoError(t, err)
	iid, err := cmd.CreateItem(ctx, app.ItemInput{Name: ptr("Widget"), Price: ptr(9.99)})
	require.NoError(t, err)

	// warm the cache with the empty views
	items, err := q.CustomerItems(ctx, cid)
	require.NoError(t, err)
	assert.Empty(t, items)

	rid, err := cmd.AppendItem(ctx, cid, iid)
	require.NoError(t, err)

	items, err = q.CustomerItems(ctx, cid)
	require.NoError(t, err)
	require.Len(t, items, 1)
	b, err := json.Marshal(items[0])
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"id": %d, "name": "Widget", "price": 9.99}`, iid), string(b))

	it, err := q.GetItem(ctx, iid)
	require.NoError(t, err)
	reviews := it["reviews"].([]any)
	require.Len(t, reviews, 1)
	rv := reviews[0].(map[string]any)
	assert.EqualValues(t, rid, rv["id"])
	assert.Nil(t, rv["comment"])
	assert.Equal(t, "Ada", rv["customer"].(map[string]any)["name"])
}

func TestCreateReview_UnknownCustomerIsIntegrityError(t *testing.T) {
	_, cmd, q := newServices(t, &fakeCache{})
	ctx := context.Background()

	iid, err := cmd.CreateItem(ctx, app.ItemInput{Name: ptr("Widget")})
	require.NoError(t, err)

	_, err = cmd.CreateReview(ctx, app.ReviewInput{Comment: ptr("hi"), CustomerID: ptr(int64(42)), ItemID: &iid})
	assert.ErrorIs(t, err, domain.ErrReferentialIntegrity)

	p, err := q.ListReviews(ctx, domain.PageQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, p.Items)
}

func TestCommands_RejectInvalidInput(t *testing.T) {
	_, cmd, _ := newServices(t, nil)
	ctx := context.Background()

	_, err := cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr(strings.Repeat("x", 256))})
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = cmd.CreateItem(ctx, app.ItemInput{Price: ptr(-1.0)})
	assert.ErrorIs(t, err, domain.ErrInvalid)
	assert.Contains(t, err.Error(), "price")

	_, err = cmd.CreateReview(ctx, app.ReviewInput{CustomerID: ptr(int64(0))})
	assert.ErrorIs(t, err, domain.ErrInvalid)

	assert.ErrorIs(t, cmd.UpdateItem(ctx, 77, app.ItemInput{Name: ptr("nope")}), domain.ErrNotFound)
}

func TestUpdateReview_RepointsAndKeepsUnsetFields(t *testing.T) {
	_, cmd, q := newServices(t, &fakeCache{})
	ctx := context.Background()

	ada, _ := cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("Ada")})
	bob, _ := cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("Bob")})
	iid, _ := cmd.CreateItem(ctx, app.ItemInput{Name: ptr("Widget")})
	rid, err := cmd.CreateReview(ctx, app.ReviewInput{Comment: ptr("Great"), CustomerID: &ada, ItemID: &iid})
	require.NoError(t, err)

	require.NoError(t, cmd.UpdateReview(ctx, rid, app.ReviewInput{CustomerID: &bob}))

	v, err := q.GetReview(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, "Great", v["comment"])
	assert.Equal(t, "Bob", v["customer"].(map[string]any)["name"])
	assert.NotContains(t, v["customer"].(map[string]any), "reviews")
	assert.NotContains(t, v["item"].(map[string]any), "reviews")

	err = cmd.DeleteCustomer(ctx, bob)
	assert.ErrorIs(t, err, domain.ErrReferentialIntegrity)
	require.NoError(t, cmd.DeleteReview(ctx, rid))
	require.NoError(t, cmd.DeleteCustomer(ctx, bob))
}

func TestListCustomers_PagesAndExcludes(t *testing.T) {
	_, cmd, q := newServices(t, &fakeCache{})
	ctx := context.Background()
	for _, n := range []string{"Ada", "Bob", "Cy"} {
		_, err := cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr(n)})
		require.NoError(t, err)
	}

	p, err := q.ListCustomers(ctx, domain.PageQuery{Limit: 2}, "-reviews")
	require.NoError(t, err)
	require.Len(t, p.Items, 2)
	require.NotNil(t, p.NextCursor)
	assert.NotContains(t, p.Items[0], "reviews")

	p, err = q.ListCustomers(ctx, domain.PageQuery{Limit: 2, AfterID: *p.NextCursor})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Nil(t, p.NextCursor)
	assert.Equal(t, "Cy", p.Items[0]["name"])

	_, err = q.ListCustomers(ctx, domain.PageQuery{Limit: 2}, "reviews")
	assert.ErrorIs(t, err, domain.ErrInvalid)
}
