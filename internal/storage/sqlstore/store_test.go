package sqlstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"modernc.org/sqlite"

	"customer_reviews/internal/domain"
	"customer_reviews/internal/serialize"
	"customer_reviews/internal/storage/sqlstore"
)

func ptr[T any](v T) *T { return &v }

func openStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	st, err := sqlstore.Open(context.Background(), sqlstore.SQLite, filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

type seeded struct {
	ada, bob       *domain.Customer
	widget, gadget *domain.Item
}

func seed(t *testing.T, repo domain.Repository) seeded {
	t.Helper()
	ctx := context.Background()
	s := seeded{
		ada:    &domain.Customer{Name: ptr("Ada")},
		bob:    &domain.Customer{Name: ptr("Bob")},
		widget: &domain.Item{Name: ptr("Widget"), Price: ptr(9.99)},
		gadget: &domain.Item{Name: ptr("Gadget")},
	}
	require.NoError(t, repo.CreateCustomer(ctx, s.ada))
	require.NoError(t, repo.CreateCustomer(ctx, s.bob))
	require.NoError(t, repo.CreateItem(ctx, s.widget))
	require.NoError(t, repo.CreateItem(ctx, s.gadget))
	return s
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	ctx := context.Background()

	st, err := sqlstore.Open(ctx, sqlstore.SQLite, path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = sqlstore.Open(ctx, sqlstore.SQLite, path)
	require.NoError(t, err)
	defer st.Close()

	var n int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSchema_ForeignKeyNames(t *testing.T) {
	st := openStore(t)
	var ddl string
	require.NoError(t, st.DB().QueryRow(`SELECT sql FROM sqlite_master WHERE name = 'reviews'`).Scan(&ddl))
	assert.Contains(t, ddl, "fk_reviews_customer_id_customers")
	assert.Contains(t, ddl, "fk_reviews_item_id_items")
}

func TestCRUD_Customer(t *testing.T) {
	st := openStore(t)
	repo := st.Session()
	ctx := context.Background()

	c := &domain.Customer{Name: ptr("Ada")}
	require.NoError(t, repo.CreateCustomer(ctx, c))
	assert.NotZero(t, c.ID)

	c.Name = nil
	require.NoError(t, repo.UpdateCustomer(ctx, c))
	got, err := repo.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Name)

	require.NoError(t, repo.DeleteCustomer(ctx, c.ID))
	_, err = repo.GetCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteCustomer(ctx, c.ID), domain.ErrNotFound)
}

func TestCRUD_ItemAndReview(t *testing.T) {
	st := openStore(t)
	repo := st.Session()
	ctx := context.Background()
	s := seed(t, repo)

	got, err := repo.GetItem(ctx, s.widget.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", *got.Name)
	assert.InDelta(t, 9.99, *got.Price, 1e-9)

	rv := &domain.Review{Comment: ptr("Great"), CustomerID: &s.ada.ID, ItemID: &s.widget.ID}
	require.NoError(t, repo.CreateReview(ctx, rv))

	// re-point the review at the other customer and item
	rv.CustomerID, rv.ItemID, rv.Comment = &s.bob.ID, &s.gadget.ID, nil
	require.NoError(t, repo.UpdateReview(ctx, rv))
	back, err := repo.GetReview(ctx, rv.ID)
	require.NoError(t, err)
	assert.Equal(t, s.bob.ID, *back.CustomerID)
	assert.Equal(t, s.gadget.ID, *back.ItemID)
	assert.Nil(t, back.Comment)

	require.NoError(t, repo.DeleteReview(ctx, rv.ID))
	_, err = repo.GetReview(ctx, rv.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// deleting reviews leaves customer and item alone
	_, err = repo.GetCustomer(ctx, s.bob.ID)
	assert.NoError(t, err)
	_, err = repo.GetItem(ctx, s.gadget.ID)
	assert.NoError(t, err)
}

func TestReview_RoundTripSameIdentityOnBothSides(t *testing.T) {
	st := openStore(t)
	repo := st.Session()
	ctx := context.Background()
	s := seed(t, repo)

	rv := &domain.Review{Comment: ptr("Great"), CustomerID: &s.ada.ID, ItemID: &s.widget.ID}
	require.NoError(t, repo.CreateReview(ctx, rv))

	c, err := repo.LoadCustomer(ctx, s.ada.ID)
	require.NoError(t, err)
	it, err := repo.LoadItem(ctx, s.widget.ID)
	require.NoError(t, err)

	require.Len(t, c.Reviews, 1)
	require.Len(t, it.Reviews, 1)
	assert.Equal(t, rv.ID, c.Reviews[0].ID)
	assert.Equal(t, rv.ID, it.Reviews[0].ID)
	assert.Same(t, c, c.Reviews[0].Customer)
	assert.Same(t, it, it.Reviews[0].Item)
}

func TestAppendItem_CreatesExactlyOneReview(t *testing.T) {
	st := openStore(t)
	repo := st.Session()
	ctx := context.Background()
	s := seed(t, repo)

	rv, err := repo.AppendItem(ctx, s.ada.ID, s.gadget.ID)
	require.NoError(t, err)
	assert.NotZero(t, rv.ID)
	assert.Nil(t, rv.Comment)

	all, err := repo.ListReviews(ctx, domain.PageQuery{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, s.ada.ID, *all[0].CustomerID)
	assert.Equal(t, s.gadget.ID, *all[0].ItemID)

	c, err := repo.LoadCustomer(ctx, s.ada.ID)
	require.NoError(t, err)
	require.Len(t, c.Items(), 1)
	assert.Equal(t, s.gadget.ID, c.Items()[0].ID)

	it, err := repo.LoadItem(ctx, s.gadget.ID)
	require.NoError(t, err)
	require.Len(t, it.Reviews, 1)
	assert.Equal(t, s.ada.ID, it.Reviews[0].Customer.ID)

	_, err = repo.AppendItem(ctx, s.ada.ID, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateReview_MissingCustomerFailsWithoutRow(t *testing.T) {
	st := openStore(t)
	repo := st.Session()
	ctx := context.Background()
	s := seed(t, repo)

	err := repo.CreateReview(ctx, &domain.Review{Comment: ptr("ghost"), CustomerID: ptr(int64(404)), ItemID: &s.widget.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReferentialIntegrity)

	var ie *domain.IntegrityError
	require.True(t, errors.As(err, &ie))
	var se *sqlite.Error
	assert.True(t, errors.As(err, &se), "driver error stays reachable")

	var n int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM reviews`).Scan(&n))
	assert.Zero(t, n)
}

func TestDelete_RestrictedWhileReviewed(t *testing.T) {
	st := openStore(t)
	repo := st.Session()
	ctx := context.Background()
	s := seed(t, repo)

	rv, err := repo.AppendItem(ctx, s.bob.ID, s.widget.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.DeleteCustomer(ctx, s.bob.ID), domain.ErrReferentialIntegrity)
	assert.ErrorIs(t, repo.DeleteItem(ctx, s.widget.ID), domain.ErrReferentialIntegrity)

	require.NoError(t, repo.DeleteReview(ctx, rv.ID))
	assert.NoError(t, repo.DeleteCustomer(ctx, s.bob.ID))
	assert.NoError(t, repo.DeleteItem(ctx, s.widget.ID))
}

func TestInTx_RollsBackOnError(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.InTx(ctx, func(repo domain.Repository) error {
		if err := repo.CreateCustomer(ctx, &domain.Customer{Name: ptr("Temp")}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cs, err := st.Session().ListCustomers(ctx, domain.PageQuery{})
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestLoaders_SerializeLikeTheModel(t *testing.T) {
	st := openStore(t)
	repo := st.Session()
	ctx := context.Background()
	s := seed(t, repo)

	require.NoError(t, repo.CreateReview(ctx, &domain.Review{Comment: ptr("Great"), CustomerID: &s.ada.ID, ItemID: &s.widget.ID}))
	require.NoError(t, repo.CreateReview(ctx, &domain.Review{Comment: ptr("Fine"), CustomerID: &s.bob.ID, ItemID: &s.widget.ID}))
	require.NoError(t, repo.CreateReview(ctx, &domain.Review{CustomerID: &s.bob.ID, ItemID: &s.gadget.ID}))
	require.NoError(t, repo.CreateReview(ctx, &domain.Review{Comment: ptr("orphan")}))

	it, err := repo.LoadItem(ctx, s.widget.ID)
	require.NoError(t, err)
	m := serialize.MustMap(it)
	reviews := m["reviews"].([]any)
	require.Len(t, reviews, 2)
	bob := reviews[1].(map[string]any)["customer"].(map[string]any)
	assert.Equal(t, "Bob", bob["name"])
	assert.Len(t, bob["items"], 2, "reviewer's items come from all of their reviews")

	rv, err := repo.LoadReview(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, rv.Customer)
	assert.Nil(t, rv.Item)

	items, err := repo.ListItems(ctx, domain.PageQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, s.widget.ID, items[0].ID)

	next, err := repo.ListItems(ctx, domain.PageQuery{Limit: 10, AfterID: items[0].ID})
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, s.gadget.ID, next[0].ID)

	customers, err := repo.ListCustomers(ctx, domain.PageQuery{})
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Len(t, customers[1].Items(), 2)

	_, err = repo.LoadItem(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
