package resource

import "context"

// ListQuery 列表查询约束。调用方只能追加过滤与分页，
// 资源声明的强制预加载不受其影响。
type ListQuery struct {
	Where  map[string]any
	Order  string
	Offset int
	Limit  int
}

// Reader 行级读取能力，事务内外共用。
type Reader interface {
	// Find 按 id 加载一行到 model。行不存在时返回 ErrNotFound。
	Find(ctx context.Context, model Entity, id string) error
	// FindMany 按等值条件加载多行到 dest（指向切片的指针）。
	FindMany(ctx context.Context, dest any, where map[string]any) error
	// FindAndCount 按查询条件加载一页数据并返回总数。
	FindAndCount(ctx context.Context, dest any, q ListQuery) (int64, error)
}

// Store 是引擎消费的存储协作方。行级 CRUD、行锁与事务原语都由它提供，
// 引擎自身不关心查询如何执行。
type Store interface {
	Reader
	// Transaction 在一个事务内执行 fn，fn 返回错误则回滚，否则提交。
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx 是活动事务内的存储句柄。它随保存上下文贯穿整棵递归调用树，
// 任何嵌套步骤都不得另起事务或提前提交。
type Tx interface {
	Reader
	// LockForUpdate 按 id 加锁加载一行，锁定范围到事务提交/回滚为止。
	LockForUpdate(ctx context.Context, model Entity, id string) error
	Create(ctx context.Context, model Entity) error
	Update(ctx context.Context, model Entity) error
	// Destroy 按等值条件删除行，返回删除数量。
	Destroy(ctx context.Context, model Entity, where map[string]any) (int64, error)
}
