package resource

import (
	"context"
	"errors"
	"reflect"
)

// List 分页查询资源，并强制预加载资源声明的单关联。
// 调用方的过滤与分页约束只会追加，不会移除这些预加载。
func List(ctx context.Context, store Store, res *Resource, q ListQuery) ([]*Handle, int64, error) {
	proto := res.Model()
	slicePtr := reflect.New(reflect.SliceOf(reflect.TypeOf(proto)))
	total, err := store.FindAndCount(ctx, slicePtr.Interface(), q)
	if err != nil {
		return nil, 0, err
	}

	s := slicePtr.Elem()
	handles := make([]*Handle, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		h := newHandle(s.Index(i).Interface().(Entity), false)
		for _, name := range res.ListIncludes {
			if err := attachSingle(ctx, store, res.relation(name), h); err != nil {
				return nil, 0, err
			}
		}
		handles = append(handles, h)
	}
	return handles, total, nil
}

// Info 按 id 加载一行，所有声明的关联（单与多）全部预加载。
func Info(ctx context.Context, store Store, res *Resource, id string) (*Handle, error) {
	model := res.Model()
	if err := store.Find(ctx, model, id); err != nil {
		return nil, err
	}
	root := newHandle(model, false)
	for _, rel := range res.Relations {
		if rel.Many {
			children, err := loadChildren(ctx, store, rel, id)
			if err != nil {
				return nil, err
			}
			for _, e := range children {
				root.addRel(rel.Name, newHandle(e, false))
			}
			continue
		}
		if err := attachSingle(ctx, store, rel, root); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// Delete 删除一行。带从属集合的资源先删子行再删根行，整个过程在
// 一个事务内完成，避免外键冲突或孤儿子行。
func Delete(ctx context.Context, store Store, res *Resource, id string) error {
	model := res.Model()
	if err := store.Find(ctx, model, id); err != nil {
		return err
	}
	return store.Transaction(ctx, func(tx Tx) error {
		if err := destroyOwned(ctx, tx, res.Relations, id); err != nil {
			return err
		}
		_, err := tx.Destroy(ctx, res.Model(), map[string]any{"id": id})
		return err
	})
}

// destroyOwned 自底向上删除从属集合的子行。
func destroyOwned(ctx context.Context, tx Tx, rels []*Relation, parentID string) error {
	for _, rel := range rels {
		if !rel.Many {
			continue
		}
		if hasOwned(rel.Nested) {
			children, err := loadChildren(ctx, tx, rel, parentID)
			if err != nil {
				return err
			}
			for _, e := range children {
				if err := destroyOwned(ctx, tx, rel.Nested, e.GetID()); err != nil {
					return err
				}
			}
		}
		if _, err := tx.Destroy(ctx, rel.Model(), map[string]any{rel.ForeignKey: parentID}); err != nil {
			return err
		}
	}
	return nil
}

func hasOwned(rels []*Relation) bool {
	for _, rel := range rels {
		if rel.Many {
			return true
		}
	}
	return false
}

// attachSingle 按外键解析一条单关联并挂到句柄上。外键为空或指向
// 已不存在的行时跳过。
func attachSingle(ctx context.Context, r Reader, rel *Relation, parent *Handle) error {
	v, ok := FieldValue(parent.Model(), rel.ForeignKey)
	if !ok {
		return nil
	}
	fk, _ := v.(string)
	if fk == "" {
		return nil
	}
	target := rel.Model()
	if err := r.Find(ctx, target, fk); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	parent.setRel(rel.Name, newHandle(target, false))
	return nil
}
