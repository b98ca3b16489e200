// Package gormstore 基于 GORM 的存储协作方实现。行锁通过
// SELECT ... FOR UPDATE 表达，事务委托给 gorm 的 Transaction。
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/erp/pkg/resource"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type session struct {
	db *gorm.DB
}

func (s session) Find(ctx context.Context, model resource.Entity, id string) error {
	return mapNotFound(s.db.WithContext(ctx).First(model, "id = ?", id).Error, model, id)
}

func (s session) FindMany(ctx context.Context, dest any, where map[string]any) error {
	return s.db.WithContext(ctx).Where(where).Find(dest).Error
}

func (s session) FindAndCount(ctx context.Context, dest any, q resource.ListQuery) (int64, error) {
	db := s.db.WithContext(ctx).Model(dest)
	if len(q.Where) > 0 {
		db = db.Where(q.Where)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return 0, err
	}
	if q.Order != "" {
		db = db.Order(q.Order)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	return total, db.Find(dest).Error
}

// Store 实现 resource.Store。
type Store struct {
	session
}

func New(db *gorm.DB) *Store {
	return &Store{session{db: db}}
}

func (s *Store) Transaction(ctx context.Context, fn func(tx resource.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&storeTx{session{db: tx}})
	})
}

type storeTx struct {
	session
}

func (t *storeTx) LockForUpdate(ctx context.Context, model resource.Entity, id string) error {
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(model, "id = ?", id).Error
	return mapNotFound(err, model, id)
}

func (t *storeTx) Create(ctx context.Context, model resource.Entity) error {
	model.EnsureID()
	return mapConstraint(t.db.WithContext(ctx).Create(model).Error)
}

func (t *storeTx) Update(ctx context.Context, model resource.Entity) error {
	return mapConstraint(t.db.WithContext(ctx).Save(model).Error)
}

func (t *storeTx) Destroy(ctx context.Context, model resource.Entity, where map[string]any) (int64, error) {
	res := t.db.WithContext(ctx).Where(where).Delete(model)
	return res.RowsAffected, mapConstraint(res.Error)
}

func mapNotFound(err error, model resource.Entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%T %s: %w", model, id, resource.ErrNotFound)
	}
	return err
}

// mapConstraint 依赖 gorm 的 TranslateError 将驱动错误归一化。
func mapConstraint(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return &resource.ConstraintError{Err: err}
	}
	return err
}
