package resource_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/erp/pkg/resource"
	"github.com/wyfcoding/erp/pkg/resource/resourcetest"
)

func TestListPaginatesAndIncludesSingles(t *testing.T) {
	store := resourcetest.NewStore()
	b := &buyer{Name: "ann"}
	store.Seed(b)
	for i := 0; i < 5; i++ {
		store.Seed(&order{Ref: "SO", FkBuyer: b.ID})
	}
	res := orderResource(true)

	handles, total, err := resource.List(context.Background(), store, res, resource.ListQuery{
		Offset: 2,
		Limit:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, handles, 2)
	for _, h := range handles {
		require.NotNil(t, h.Rel("buyer"))
		assert.Equal(t, "ann", h.Rel("buyer").Model().(*buyer).Name)
	}
}

func TestListFiltersByColumn(t *testing.T) {
	store := resourcetest.NewStore()
	b1 := &buyer{}
	b2 := &buyer{}
	store.Seed(b1, b2)
	store.Seed(&order{FkBuyer: b1.ID}, &order{FkBuyer: b2.ID}, &order{FkBuyer: b1.ID})
	res := orderResource(true)

	handles, total, err := resource.List(context.Background(), store, res, resource.ListQuery{
		Where: map[string]any{"fk_buyer": b1.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, handles, 2)
}

func TestInfoLoadsAllRelations(t *testing.T) {
	store := resourcetest.NewStore()
	b := &buyer{Name: "ann"}
	s1 := &sku{Units: 5}
	store.Seed(b, s1)
	o := &order{Ref: "SO-1", FkBuyer: b.ID}
	store.Seed(o)
	store.Seed(
		&orderItem{Qty: 1, FkOrder: o.ID, FkSku: s1.ID},
		&orderItem{Qty: 2, FkOrder: o.ID, FkSku: s1.ID},
	)
	res := orderResource(true)

	h, err := resource.Info(context.Background(), store, res, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "SO-1", h.Model().(*order).Ref)
	require.NotNil(t, h.Rel("buyer"))
	assert.Len(t, h.Rels("items"), 2)
}

func TestInfoSkipsDanglingReference(t *testing.T) {
	store := resourcetest.NewStore()
	o := &order{FkBuyer: "missing"}
	store.Seed(o)
	res := orderResource(true)

	h, err := resource.Info(context.Background(), store, res, o.ID)
	require.NoError(t, err)
	assert.Nil(t, h.Rel("buyer"))
}

func TestInfoNotFound(t *testing.T) {
	store := resourcetest.NewStore()
	res := orderResource(true)

	_, err := resource.Info(context.Background(), store, res, "nope")
	assert.ErrorIs(t, err, resource.ErrNotFound)
}

func TestDeleteRemovesChildrenWithRoot(t *testing.T) {
	store := resourcetest.NewStore()
	o := &order{}
	other := &order{}
	store.Seed(o, other)
	store.Seed(
		&orderItem{FkOrder: o.ID},
		&orderItem{FkOrder: o.ID},
		&orderItem{FkOrder: other.ID},
	)
	res := orderResource(true)

	require.NoError(t, resource.Delete(context.Background(), store, res, o.ID))

	assert.Equal(t, 1, store.Count(&order{}))
	assert.Equal(t, 1, store.Count(&orderItem{}))
	items := []*orderItem{}
	require.NoError(t, store.FindMany(context.Background(), &items, map[string]any{"fk_order": other.ID}))
	require.Len(t, items, 1)
	assert.Equal(t, other.ID, items[0].FkOrder)
}

func TestDeleteNotFound(t *testing.T) {
	store := resourcetest.NewStore()
	res := orderResource(true)

	err := resource.Delete(context.Background(), store, res, "nope")
	assert.ErrorIs(t, err, resource.ErrNotFound)
}

var errBoom = errors.New("boom")

// failRootDestroy 包装存储，让根行（按 id 删除）的 Destroy 失败，
// 用来验证删除的原子性：子行的删除必须一并回滚。
type failRootDestroy struct {
	resource.Store
}

func (s *failRootDestroy) Transaction(ctx context.Context, fn func(tx resource.Tx) error) error {
	return s.Store.Transaction(ctx, func(tx resource.Tx) error {
		return fn(&failRootTx{Tx: tx})
	})
}

type failRootTx struct {
	resource.Tx
}

func (t *failRootTx) Destroy(ctx context.Context, model resource.Entity, where map[string]any) (int64, error) {
	if _, ok := where["id"]; ok {
		return 0, errBoom
	}
	return t.Tx.Destroy(ctx, model, where)
}

func TestDeleteRollsBackChildrenOnRootFailure(t *testing.T) {
	base := resourcetest.NewStore()
	o := &order{}
	base.Seed(o)
	base.Seed(&orderItem{FkOrder: o.ID}, &orderItem{FkOrder: o.ID})
	store := &failRootDestroy{Store: base}
	res := orderResource(true)

	err := resource.Delete(context.Background(), store, res, o.ID)
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, 1, base.Count(&order{}))
	assert.Equal(t, 2, base.Count(&orderItem{}))
}
