package resource

import "fmt"

// ValidateItemHook 在条目自身的规则校验之后、写入之前调用。
// 可以修改候选字段值，也可以返回 DomainError 否决整个保存。
type ValidateItemHook func(fields Fields, item *Handle, sc *SaveContext) error

// PersistItemHook 在条目写入之后调用，用于在同一事务内持久化
// 经由条目触达的其它实体（例如被锁定商品的库存）。
type PersistItemHook func(item *Handle, sc *SaveContext) error

// RootHook 作用于根实体。OnSave 在所有关联处理完成后调用，
// OnCreate 仅在根实体为新建时、OnSave 之后调用。
type RootHook func(root *Handle, sc *SaveContext) error

// Relation 单条关联的静态元数据，注册时构建一次，之后只读。
type Relation struct {
	// Name 载荷中承载该关联的字段名。
	Name string
	// Model 目标实体的原型工厂。
	Model func() Entity
	// ForeignKey 外键列名。单关联写在本实体上，多关联写在子实体上。
	ForeignKey string
	// Many 为真表示一对多的从属集合，否则是单个引用。
	Many bool
	// Lock 为真时按行锁加载引用行，串行化共享计数的并发修改。
	Lock bool
	// Cascade 为真时，更新载荷中缺席的已持久化子行会被删除。
	Cascade bool
	// Schema 多关联条目自身的字段规则。
	Schema Schema
	// Nested 条目内部的下级关联。
	Nested []*Relation

	OnValidateItem ValidateItemHook
	OnPersistItem  PersistItemHook
}

// Resource 一个资源类型的完整描述：字段规则、关联树与根级钩子。
type Resource struct {
	Name      string
	Model     func() Entity
	Schema    Schema
	Relations []*Relation
	// ListIncludes 列表查询强制预加载的单关联名。
	ListIncludes []string

	OnSave   RootHook
	OnCreate RootHook
}

// New 校验资源描述并返回。关联图必须是一棵树：任何实体类型
// 不允许出现在自己的祖先链上。
func New(res *Resource) (*Resource, error) {
	if res.Name == "" || res.Model == nil {
		return nil, fmt.Errorf("resource %q: name and model are required", res.Name)
	}
	if err := checkRelations(res.Relations, []string{entityType(res.Model())}); err != nil {
		return nil, fmt.Errorf("resource %q: %w", res.Name, err)
	}
	for _, name := range res.ListIncludes {
		if rel := res.relation(name); rel == nil || rel.Many {
			return nil, fmt.Errorf("resource %q: list include %q is not a declared single relation", res.Name, name)
		}
	}
	return res, nil
}

// MustNew 同 New，失败时 panic。用于启动期的资源注册。
func MustNew(res *Resource) *Resource {
	r, err := New(res)
	if err != nil {
		panic(err)
	}
	return r
}

func checkRelations(rels []*Relation, ancestors []string) error {
	seen := map[string]bool{}
	for _, rel := range rels {
		if rel.Name == "" || rel.Model == nil {
			return fmt.Errorf("relation %q: name and model are required", rel.Name)
		}
		if seen[rel.Name] {
			return fmt.Errorf("relation %q declared twice", rel.Name)
		}
		seen[rel.Name] = true
		if rel.ForeignKey == "" {
			return fmt.Errorf("relation %q: foreign key is required", rel.Name)
		}
		target := entityType(rel.Model())
		for _, a := range ancestors {
			if a == target {
				return fmt.Errorf("relation %q: %s is its own ancestor", rel.Name, target)
			}
		}
		if err := checkRelations(rel.Nested, append(ancestors, target)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resource) relation(name string) *Relation {
	for _, rel := range r.Relations {
		if rel.Name == name {
			return rel
		}
	}
	return nil
}
