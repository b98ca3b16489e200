package resource

import "context"

// SaveContext 贯穿一次保存操作的递归调用树。事务句柄是其中唯一的
// 可变共享资源，只传递、不复制，嵌套步骤不得另起事务。
type SaveContext struct {
	ctx   context.Context
	tx    Tx
	locks map[string]*Handle
}

func newSaveContext(ctx context.Context, tx Tx) *SaveContext {
	return &SaveContext{ctx: ctx, tx: tx, locks: map[string]*Handle{}}
}

// Context 本次操作的请求上下文。
func (sc *SaveContext) Context() context.Context { return sc.ctx }

// Tx 活动事务句柄，钩子借此在同一事务内写其它实体。
func (sc *SaveContext) Tx() Tx { return sc.tx }

// resolve 解析一条单关联。加锁关联按 (类型,id) 在事务内只加锁一次，
// 后续解析复用同一句柄，避免重入加锁造成死锁，同时让多个条目对
// 同一引用行的修改叠加在同一个模型实例上。
func (sc *SaveContext) resolve(rel *Relation, id string) (*Handle, error) {
	key := entityType(rel.Model()) + ":" + id
	if h, ok := sc.locks[key]; ok {
		return h, nil
	}
	model := rel.Model()
	var err error
	if rel.Lock {
		err = sc.tx.LockForUpdate(sc.ctx, model, id)
	} else {
		err = sc.tx.Find(sc.ctx, model, id)
	}
	if err != nil {
		return nil, err
	}
	h := newHandle(model, false)
	sc.locks[key] = h
	return h, nil
}
