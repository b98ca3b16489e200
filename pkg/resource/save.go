package resource

import (
	"context"
	"fmt"
	"reflect"
)

// Save 保存根实体及其整棵关联树。载荷带 id 视为更新，否则视为创建。
// 校验失败在事务开启前返回；进入事务后任何错误（包括钩子否决）都会
// 回滚全部写入。成功后返回重新加载、关联齐全的根句柄。
func Save(ctx context.Context, store Store, res *Resource, payload Fields) (*Handle, error) {
	payload = payload.Clone()
	id := payload.String("id")
	delete(payload, "id")
	isCreate := id == ""

	cleaned, err := res.Schema.Validate(payload, isCreate)
	if err != nil {
		return nil, err
	}

	// 关联字段从根字段中剥离，各自按关联描述处理。
	relValues := map[string]any{}
	for _, rel := range res.Relations {
		if v, ok := cleaned[rel.Name]; ok {
			relValues[rel.Name] = v
			delete(cleaned, rel.Name)
		}
	}

	var rootID string
	err = store.Transaction(ctx, func(tx Tx) error {
		sc := newSaveContext(ctx, tx)

		model := res.Model()
		if !isCreate {
			if err := tx.Find(ctx, model, id); err != nil {
				return err
			}
		}
		root := newHandle(model, isCreate)

		// 单关联先解析：引用行的锁必须在一切写入之前拿到。
		for _, rel := range res.Relations {
			if rel.Many {
				continue
			}
			v, ok := relValues[rel.Name]
			if !ok {
				continue
			}
			refID, ok := v.(string)
			if !ok {
				return &ValidationError{Field: rel.Name, Constraint: "id", Message: "relation value must be an id"}
			}
			h, err := sc.resolve(rel, refID)
			if err != nil {
				return err
			}
			root.setRel(rel.Name, h)
			cleaned[rel.ForeignKey] = refID
		}

		// 根行先落库，子行外键才有合法的父 id。
		if err := cleaned.ApplyTo(model); err != nil {
			return err
		}
		if isCreate {
			if err := tx.Create(ctx, model); err != nil {
				return err
			}
		} else if err := tx.Update(ctx, model); err != nil {
			return err
		}

		for _, rel := range res.Relations {
			if !rel.Many {
				continue
			}
			raw, ok := relValues[rel.Name]
			if !ok {
				// 载荷未触及该集合：挂上现有子行供根级钩子聚合，不做写入。
				if err := attachExisting(sc, rel, root); err != nil {
					return err
				}
				continue
			}
			if err := saveMany(sc, rel, root, raw); err != nil {
				return err
			}
		}

		if res.OnSave != nil {
			if err := res.OnSave(root, sc); err != nil {
				return err
			}
			if err := tx.Update(ctx, model); err != nil {
				return err
			}
		}
		if isCreate && res.OnCreate != nil {
			if err := res.OnCreate(root, sc); err != nil {
				return err
			}
			if err := tx.Update(ctx, model); err != nil {
				return err
			}
		}

		rootID = model.GetID()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Info(ctx, store, res, rootID)
}

// saveMany 按 id 对账一个从属集合：带 id 的条目更新，不带 id 的创建，
// 已持久化但缺席的条目在 Cascade 打开时删除，否则保持原样。
func saveMany(sc *SaveContext, rel *Relation, parent *Handle, raw any) error {
	items, err := itemList(rel, raw)
	if err != nil {
		return err
	}

	existing, err := loadChildren(sc.ctx, sc.tx, rel, parent.ID())
	if err != nil {
		return err
	}
	byID := make(map[string]Entity, len(existing))
	for _, e := range existing {
		byID[e.GetID()] = e
	}
	seen := make(map[string]bool, len(items))

	for _, itemPayload := range items {
		fields := itemPayload.Clone()
		itemID := fields.String("id")
		delete(fields, "id")
		isNew := itemID == ""

		cleaned, err := rel.Schema.Validate(fields, isNew)
		if err != nil {
			return err
		}
		nestedValues := map[string]any{}
		for _, nested := range rel.Nested {
			if v, ok := cleaned[nested.Name]; ok {
				nestedValues[nested.Name] = v
				delete(cleaned, nested.Name)
			}
		}

		var model Entity
		if isNew {
			model = rel.Model()
		} else {
			e, ok := byID[itemID]
			if !ok {
				return notFoundf("%s %s not found under parent %s", rel.Name, itemID, parent.ID())
			}
			model = e
			seen[itemID] = true
		}
		item := newHandle(model, isNew)

		// 条目钩子依赖已解析的下级引用（例如 item → product），先解析。
		for _, nested := range rel.Nested {
			if nested.Many {
				continue
			}
			v, ok := nestedValues[nested.Name]
			if !ok {
				continue
			}
			refID, ok := v.(string)
			if !ok {
				return &ValidationError{Field: nested.Name, Constraint: "id", Message: "relation value must be an id"}
			}
			h, err := sc.resolve(nested, refID)
			if err != nil {
				return err
			}
			item.setRel(nested.Name, h)
			cleaned[nested.ForeignKey] = refID
		}

		if rel.OnValidateItem != nil {
			if err := rel.OnValidateItem(cleaned, item, sc); err != nil {
				return err
			}
		}

		cleaned[rel.ForeignKey] = parent.ID()
		if err := cleaned.ApplyTo(model); err != nil {
			return err
		}
		if isNew {
			if err := sc.tx.Create(sc.ctx, model); err != nil {
				return err
			}
		} else if err := sc.tx.Update(sc.ctx, model); err != nil {
			return err
		}

		for _, nested := range rel.Nested {
			if !nested.Many {
				continue
			}
			if v, ok := nestedValues[nested.Name]; ok {
				if err := saveMany(sc, nested, item, v); err != nil {
					return err
				}
			}
		}

		if rel.OnPersistItem != nil {
			if err := rel.OnPersistItem(item, sc); err != nil {
				return err
			}
		}
		parent.addRel(rel.Name, item)
	}

	if rel.Cascade {
		for _, e := range existing {
			if seen[e.GetID()] {
				continue
			}
			if err := destroyOwned(sc.ctx, sc.tx, rel.Nested, e.GetID()); err != nil {
				return err
			}
			if _, err := sc.tx.Destroy(sc.ctx, rel.Model(), map[string]any{"id": e.GetID()}); err != nil {
				return err
			}
		}
	}
	return nil
}

func attachExisting(sc *SaveContext, rel *Relation, parent *Handle) error {
	existing, err := loadChildren(sc.ctx, sc.tx, rel, parent.ID())
	if err != nil {
		return err
	}
	for _, e := range existing {
		parent.addRel(rel.Name, newHandle(e, false))
	}
	return nil
}

func itemList(rel *Relation, raw any) ([]Fields, error) {
	switch v := raw.(type) {
	case []Fields:
		return v, nil
	case []map[string]any:
		out := make([]Fields, len(v))
		for i, m := range v {
			out[i] = Fields(m)
		}
		return out, nil
	case []any:
		out := make([]Fields, len(v))
		for i, item := range v {
			switch m := item.(type) {
			case map[string]any:
				out[i] = Fields(m)
			case Fields:
				out[i] = m
			default:
				return nil, &ValidationError{Field: rel.Name, Constraint: "array", Message: "items must be objects"}
			}
		}
		return out, nil
	default:
		return nil, &ValidationError{Field: rel.Name, Constraint: "array", Message: "relation value must be an array"}
	}
}

// loadChildren 按外键加载一个从属集合的现有子行。
func loadChildren(ctx context.Context, r Reader, rel *Relation, parentID string) ([]Entity, error) {
	proto := rel.Model()
	slicePtr := reflect.New(reflect.SliceOf(reflect.TypeOf(proto)))
	if err := r.FindMany(ctx, slicePtr.Interface(), map[string]any{rel.ForeignKey: parentID}); err != nil {
		return nil, err
	}
	s := slicePtr.Elem()
	out := make([]Entity, s.Len())
	for i := 0; i < s.Len(); i++ {
		e, ok := s.Index(i).Interface().(Entity)
		if !ok {
			return nil, fmt.Errorf("relation %q: model does not implement Entity", rel.Name)
		}
		out[i] = e
	}
	return out, nil
}
