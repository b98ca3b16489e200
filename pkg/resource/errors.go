package resource

import (
	"errors"
	"fmt"
)

// ErrNotFound 目标行不存在（按 id 加载、锁定引用、Info/Delete）。
var ErrNotFound = errors.New("record not found")

// ValidationError 入参未通过字段规则校验，在事务开启之前返回。
type ValidationError struct {
	Field      string
	Constraint string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on field %q (%s): %s", e.Field, e.Constraint, e.Message)
}

// DomainError 业务钩子否决了本次保存，整个事务回滚。
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string { return e.Message }

// Domainf 构造一个 DomainError。
func Domainf(format string, args ...any) error {
	return &DomainError{Message: fmt.Sprintf(format, args...)}
}

// ConstraintError 存储层约束冲突（唯一键、外键），原始错误不做改写。
type ConstraintError struct {
	Err error
}

func (e *ConstraintError) Error() string { return e.Err.Error() }

func (e *ConstraintError) Unwrap() error { return e.Err }

func notFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}
