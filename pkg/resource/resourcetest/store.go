// Package resourcetest 提供 resource.Store 的内存实现，供引擎与资源
// 定义的测试使用：行锁是真实的互斥锁（持有到提交/回滚），回滚通过
// 逐操作的撤销日志实现，因此并发与原子性语义都可以在测试里直接验证。
package resourcetest

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/wyfcoding/erp/pkg/resource"
)

type table struct {
	order []string
	rows  map[string]resource.Entity
}

// Store 内存存储。
type Store struct {
	mu     sync.Mutex
	tables map[string]*table
	locks  map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		tables: map[string]*table{},
		locks:  map[string]*sync.Mutex{},
	}
}

// Seed 直接写入一行，绕过事务，用于测试准备数据。
func (s *Store) Seed(entities ...resource.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		e.EnsureID()
		t := s.tableLocked(typeName(e))
		if _, ok := t.rows[e.GetID()]; !ok {
			t.order = append(t.order, e.GetID())
		}
		t.rows[e.GetID()] = clone(e)
	}
}

// Count 返回某类型现存行数。
func (s *Store) Count(proto resource.Entity) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tableLocked(typeName(proto)).rows)
}

func (s *Store) Find(ctx context.Context, model resource.Entity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(model, id)
}

func (s *Store) FindMany(ctx context.Context, dest any, where map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findManyLocked(dest, where, resource.ListQuery{})
}

func (s *Store) FindAndCount(ctx context.Context, dest any, q resource.ListQuery) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := int64(0)
	t := s.tableLocked(sliceElemType(dest))
	for _, id := range t.order {
		if matches(t.rows[id], q.Where) {
			total++
		}
	}
	return total, s.findManyLocked(dest, q.Where, q)
}

func (s *Store) Transaction(ctx context.Context, fn func(tx resource.Tx) error) error {
	tx := &memTx{s: s, held: map[string]*sync.Mutex{}}
	err := fn(tx)
	if err != nil {
		tx.rollback()
	}
	tx.release()
	return err
}

func (s *Store) tableLocked(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{rows: map[string]resource.Entity{}}
		s.tables[name] = t
	}
	return t
}

func (s *Store) rowLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

func (s *Store) findLocked(model resource.Entity, id string) error {
	t := s.tableLocked(typeName(model))
	row, ok := t.rows[id]
	if !ok {
		return fmt.Errorf("%s %s: %w", typeName(model), id, resource.ErrNotFound)
	}
	assign(model, row)
	return nil
}

// findManyLocked 按插入顺序过滤行，填充到 dest 指向的切片。
func (s *Store) findManyLocked(dest any, where map[string]any, q resource.ListQuery) error {
	slice := reflect.ValueOf(dest).Elem()
	t := s.tableLocked(sliceElemType(dest))
	out := reflect.MakeSlice(slice.Type(), 0, len(t.order))
	skipped := 0
	for _, id := range t.order {
		row := t.rows[id]
		if !matches(row, where) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		if q.Limit > 0 && out.Len() >= q.Limit {
			break
		}
		out = reflect.Append(out, reflect.ValueOf(clone(row)))
	}
	slice.Set(out)
	return nil
}

type memTx struct {
	s    *Store
	held map[string]*sync.Mutex
	undo []func()
}

func (t *memTx) Find(ctx context.Context, model resource.Entity, id string) error {
	return t.s.Find(ctx, model, id)
}

func (t *memTx) FindMany(ctx context.Context, dest any, where map[string]any) error {
	return t.s.FindMany(ctx, dest, where)
}

func (t *memTx) FindAndCount(ctx context.Context, dest any, q resource.ListQuery) (int64, error) {
	return t.s.FindAndCount(ctx, dest, q)
}

// LockForUpdate 持有行级互斥锁直到事务结束。同一事务重复加锁直接复用。
func (t *memTx) LockForUpdate(ctx context.Context, model resource.Entity, id string) error {
	key := typeName(model) + ":" + id
	if _, ok := t.held[key]; !ok {
		m := t.s.rowLock(key)
		m.Lock()
		t.held[key] = m
	}
	return t.s.Find(ctx, model, id)
}

func (t *memTx) Create(ctx context.Context, model resource.Entity) error {
	model.EnsureID()
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tab := t.s.tableLocked(typeName(model))
	id := model.GetID()
	if _, ok := tab.rows[id]; ok {
		return &resource.ConstraintError{Err: fmt.Errorf("duplicate key %s on %s", id, typeName(model))}
	}
	tab.rows[id] = clone(model)
	tab.order = append(tab.order, id)
	t.undo = append(t.undo, func() {
		delete(tab.rows, id)
		tab.order = removeID(tab.order, id)
	})
	return nil
}

func (t *memTx) Update(ctx context.Context, model resource.Entity) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tab := t.s.tableLocked(typeName(model))
	id := model.GetID()
	prev, ok := tab.rows[id]
	if !ok {
		return fmt.Errorf("%s %s: %w", typeName(model), id, resource.ErrNotFound)
	}
	tab.rows[id] = clone(model)
	t.undo = append(t.undo, func() { tab.rows[id] = prev })
	return nil
}

func (t *memTx) Destroy(ctx context.Context, model resource.Entity, where map[string]any) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tab := t.s.tableLocked(typeName(model))
	var removed int64
	for i := 0; i < len(tab.order); {
		id := tab.order[i]
		row := tab.rows[id]
		if !matches(row, where) {
			i++
			continue
		}
		idx := i
		tab.order = append(tab.order[:i], tab.order[i+1:]...)
		delete(tab.rows, id)
		removed++
		t.undo = append(t.undo, func() {
			tab.rows[id] = row
			tab.order = insertID(tab.order, idx, id)
		})
	}
	return removed, nil
}

func (t *memTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) release() {
	for _, m := range t.held {
		m.Unlock()
	}
	t.held = map[string]*sync.Mutex{}
}

func typeName(e resource.Entity) string {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func sliceElemType(dest any) string {
	t := reflect.TypeOf(dest)
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	return t.Name()
}

func clone(e resource.Entity) resource.Entity {
	v := reflect.ValueOf(e).Elem()
	out := reflect.New(v.Type())
	out.Elem().Set(v)
	return out.Interface().(resource.Entity)
}

func assign(dst, src resource.Entity) {
	reflect.ValueOf(dst).Elem().Set(reflect.ValueOf(src).Elem())
}

func matches(e resource.Entity, where map[string]any) bool {
	for column, want := range where {
		got, ok := resource.FieldValue(e, column)
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

func insertID(order []string, idx int, id string) []string {
	if idx > len(order) {
		idx = len(order)
	}
	order = append(order, "")
	copy(order[idx+1:], order[idx:])
	order[idx] = id
	return order
}

var _ resource.Store = (*Store)(nil)
var _ resource.Tx = (*memTx)(nil)
