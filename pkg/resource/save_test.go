package resource_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/erp/pkg/resource"
	"github.com/wyfcoding/erp/pkg/resource/resourcetest"
)

func TestSaveCreatesOrderWithItems(t *testing.T) {
	store := resourcetest.NewStore()
	b := &buyer{Name: "ann"}
	s1 := &sku{Code: "A", Units: 5}
	store.Seed(b, s1)
	res := orderResource(true)

	h, err := resource.Save(context.Background(), store, res, resource.Fields{
		"ref":   "SO-1",
		"buyer": b.ID,
		"items": []any{item(2, s1.ID)},
	})
	require.NoError(t, err)

	ord := h.Model().(*order)
	assert.Equal(t, "SO-1", ord.Ref)
	assert.Equal(t, b.ID, ord.FkBuyer)
	assert.True(t, ord.Total.Equal(decimal.NewFromInt(2)))

	items := h.Rels("items")
	require.Len(t, items, 1)
	row := items[0].Model().(*orderItem)
	assert.Equal(t, ord.ID, row.FkOrder)
	assert.Equal(t, s1.ID, row.FkSku)
	assert.Equal(t, 2, row.Qty)

	require.NotNil(t, h.Rel("buyer"))
	assert.Equal(t, "ann", h.Rel("buyer").Model().(*buyer).Name)

	var gotSku sku
	require.NoError(t, store.Find(context.Background(), &gotSku, s1.ID))
	assert.Equal(t, 3, gotSku.Units)

	var gotBuyer buyer
	require.NoError(t, store.Find(context.Background(), &gotBuyer, b.ID))
	assert.Equal(t, 1, gotBuyer.Credits)
}

func TestSaveRejectsUnknownField(t *testing.T) {
	store := resourcetest.NewStore()
	res := orderResource(true)

	_, err := resource.Save(context.Background(), store, res, resource.Fields{
		"ref":    "SO-1",
		"secret": true,
	})

	var verr *resource.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "secret", verr.Field)
	assert.Equal(t, 0, store.Count(&order{}))
}

func TestSaveCreateRequiresDeclaredFields(t *testing.T) {
	store := resourcetest.NewStore()
	res := orderResource(true)

	_, err := resource.Save(context.Background(), store, res, resource.Fields{
		"ref": "SO-1",
	})

	var verr *resource.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, store.Count(&order{}))
}

func TestSaveInvalidItemRollsBack(t *testing.T) {
	store := resourcetest.NewStore()
	b := &buyer{}
	s1 := &sku{Units: 5}
	store.Seed(b, s1)
	res := orderResource(true)

	_, err := resource.Save(context.Background(), store, res, resource.Fields{
		"buyer": b.ID,
		"items": []any{item(0, s1.ID)}, // qty 违反 min=1
	})

	var verr *resource.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "qty", verr.Field)
	assert.Equal(t, 0, store.Count(&order{}))
	assert.Equal(t, 0, store.Count(&orderItem{}))
}

func TestSaveUpdateMissingRoot(t *testing.T) {
	store := resourcetest.NewStore()
	res := orderResource(true)

	_, err := resource.Save(context.Background(), store, res, resource.Fields{
		"id":  uuid.NewString(),
		"ref": "SO-1",
	})
	assert.ErrorIs(t, err, resource.ErrNotFound)
}

func TestSaveUpdateReconcilesItems(t *testing.T) {
	store := resourcetest.NewStore()
	b := &buyer{}
	s1 := &sku{Code: "A", Units: 10}
	s2 := &sku{Code: "B", Units: 10}
	o := &order{Ref: "SO-1"}
	store.Seed(b, s1, s2, o)
	i1 := &orderItem{Qty: 2, FkOrder: o.ID, FkSku: s1.ID}
	i2 := &orderItem{Qty: 1, FkOrder: o.ID, FkSku: s2.ID}
	store.Seed(i1, i2)
	res := orderResource(true)

	h, err := resource.Save(context.Background(), store, res, resource.Fields{
		"id": o.ID,
		"items": []any{
			persistedItem(i1.ID, 5, s1.ID), // 数量 2 → 5
			item(1, s1.ID),                 // 新增
		},
	})
	require.NoError(t, err)

	items := h.Rels("items")
	require.Len(t, items, 2)
	assert.Equal(t, i1.ID, items[0].ID())
	assert.Equal(t, 5, items[0].Model().(*orderItem).Qty)
	assert.Equal(t, 1, items[1].Model().(*orderItem).Qty)
	assert.True(t, h.Model().(*order).Total.Equal(decimal.NewFromInt(6)))

	// i2 缺席且 Cascade 打开，应已删除。
	assert.Equal(t, 2, store.Count(&orderItem{}))
	var gone orderItem
	assert.ErrorIs(t, store.Find(context.Background(), &gone, i2.ID), resource.ErrNotFound)

	// s1 的扣减是增量：(5-2) + 1 = 4。
	var gotSku sku
	require.NoError(t, store.Find(context.Background(), &gotSku, s1.ID))
	assert.Equal(t, 6, gotSku.Units)
	require.NoError(t, store.Find(context.Background(), &gotSku, s2.ID))
	assert.Equal(t, 10, gotSku.Units)
}

func TestSaveKeepsAbsentItemsWithoutCascade(t *testing.T) {
	store := resourcetest.NewStore()
	b := &buyer{}
	s1 := &sku{Units: 10}
	o := &order{}
	store.Seed(b, s1, o)
	i1 := &orderItem{Qty: 2, FkOrder: o.ID, FkSku: s1.ID}
	store.Seed(i1)
	res := orderResource(false)

	_, err := resource.Save(context.Background(), store, res, resource.Fields{
		"id":    o.ID,
		"items": []any{item(1, s1.ID)},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, store.Count(&orderItem{}))
	var kept orderItem
	require.NoError(t, store.Find(context.Background(), &kept, i1.ID))
	assert.Equal(t, 2, kept.Qty)
}

func TestSaveRejectsItemOfAnotherParent(t *testing.T) {
	store := resourcetest.NewStore()
	b := &buyer{}
	s1 := &sku{Units: 10}
	o1 := &order{Ref: "SO-1"}
	o2 := &order{Ref: "SO-2"}
	store.Seed(b, s1, o1, o2)
	foreign := &orderItem{Qty: 1, FkOrder: o2.ID, FkSku: s1.ID}
	store.Seed(foreign)
	res := orderResource(true)

	_, err := resource.Save(context.Background(), store, res, resource.Fields{
		"id":    o1.ID,
		"ref":   "SO-1b",
		"items": []any{persistedItem(foreign.ID, 3, s1.ID)},
	})
	require.ErrorIs(t, err, resource.ErrNotFound)

	// 根行的更新也一并回滚。
	var got order
	require.NoError(t, store.Find(context.Background(), &got, o1.ID))
	assert.Equal(t, "SO-1", got.Ref)
}

func TestSaveHookVetoRollsBackEverything(t *testing.T) {
	store := resourcetest.NewStore()
	b := &buyer{}
	s1 := &sku{Code: "A", Units: 5}
	store.Seed(b, s1)
	res := orderResource(true)

	_, err := resource.Save(context.Background(), store, res, resource.Fields{
		"buyer": b.ID,
		"items": []any{item(10, s1.ID)},
	})

	var derr *resource.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Message, "out of stock")

	assert.Equal(t, 0, store.Count(&order{}))
	assert.Equal(t, 0, store.Count(&orderItem{}))
	var gotSku sku
	require.NoError(t, store.Find(context.Background(), &gotSku, s1.ID))
	assert.Equal(t, 5, gotSku.Units)
	var gotBuyer buyer
	require.NoError(t, store.Find(context.Background(), &gotBuyer, b.ID))
	assert.Equal(t, 0, gotBuyer.Credits)
}

func TestSaveAggregatesOmittedItems(t *testing.T) {
	store := resourcetest.NewStore()
	b := &buyer{}
	s1 := &sku{Units: 10}
	o := &order{Ref: "SO-1", FkBuyer: b.ID}
	store.Seed(b, s1, o)
	store.Seed(
		&orderItem{Qty: 2, FkOrder: o.ID, FkSku: s1.ID},
		&orderItem{Qty: 3, FkOrder: o.ID, FkSku: s1.ID},
	)
	res := orderResource(true)

	h, err := resource.Save(context.Background(), store, res, resource.Fields{
		"id":  o.ID,
		"ref": "SO-2",
	})
	require.NoError(t, err)

	// 载荷未触及 items：集合原样保留，聚合仍基于现有子行。
	assert.Equal(t, "SO-2", h.Model().(*order).Ref)
	assert.True(t, h.Model().(*order).Total.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 2, store.Count(&orderItem{}))
	var gotSku sku
	require.NoError(t, store.Find(context.Background(), &gotSku, s1.ID))
	assert.Equal(t, 10, gotSku.Units)
}

func TestSaveOnCreateSkippedOnUpdate(t *testing.T) {
	store := resourcetest.NewStore()
	b := &buyer{Credits: 7}
	o := &order{FkBuyer: b.ID}
	store.Seed(b, o)
	res := orderResource(true)

	_, err := resource.Save(context.Background(), store, res, resource.Fields{
		"id":  o.ID,
		"ref": "SO-1",
	})
	require.NoError(t, err)

	var gotBuyer buyer
	require.NoError(t, store.Find(context.Background(), &gotBuyer, b.ID))
	assert.Equal(t, 7, gotBuyer.Credits)
}

// lockCounter 包装存储，统计每行的加锁次数。
type lockCounter struct {
	resource.Store
	mu    sync.Mutex
	calls map[string]int
}

func (s *lockCounter) Transaction(ctx context.Context, fn func(tx resource.Tx) error) error {
	return s.Store.Transaction(ctx, func(tx resource.Tx) error {
		return fn(&countingTx{Tx: tx, s: s})
	})
}

type countingTx struct {
	resource.Tx
	s *lockCounter
}

func (t *countingTx) LockForUpdate(ctx context.Context, model resource.Entity, id string) error {
	t.s.mu.Lock()
	t.s.calls[id]++
	t.s.mu.Unlock()
	return t.Tx.LockForUpdate(ctx, model, id)
}

func TestSaveLocksReferenceOncePerRow(t *testing.T) {
	base := resourcetest.NewStore()
	b := &buyer{}
	s1 := &sku{Units: 10}
	base.Seed(b, s1)
	store := &lockCounter{Store: base, calls: map[string]int{}}
	res := orderResource(true)

	_, err := resource.Save(context.Background(), store, res, resource.Fields{
		"buyer": b.ID,
		"items": []any{item(1, s1.ID), item(2, s1.ID), item(3, s1.ID)},
	})
	require.NoError(t, err)

	// 三个条目引用同一 sku，锁只取一次；复用的是同一个已解析句柄，
	// 所以扣减在同一实例上累计。
	assert.Equal(t, 1, store.calls[s1.ID])
	assert.Equal(t, 1, store.calls[b.ID])
	var gotSku sku
	require.NoError(t, base.Find(context.Background(), &gotSku, s1.ID))
	assert.Equal(t, 4, gotSku.Units)
}

func TestSaveConcurrentOrdersSerializeOnStock(t *testing.T) {
	store := resourcetest.NewStore()
	b := &buyer{}
	s1 := &sku{Code: "A", Units: 5}
	store.Seed(b, s1)
	res := orderResource(true)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = resource.Save(context.Background(), store, res, resource.Fields{
				"buyer": b.ID,
				"items": []any{item(3, s1.ID)},
			})
		}(i)
	}
	wg.Wait()

	// 行锁串行化两次扣减：恰好一单成功，另一单因库存不足被否决。
	var failures int
	for _, err := range errs {
		if err != nil {
			var derr *resource.DomainError
			require.ErrorAs(t, err, &derr)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, store.Count(&order{}))
	assert.Equal(t, 1, store.Count(&orderItem{}))
	var gotSku sku
	require.NoError(t, store.Find(context.Background(), &gotSku, s1.ID))
	assert.Equal(t, 2, gotSku.Units)
}
