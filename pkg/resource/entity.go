// Package resource 实现声明式的嵌套资源保存引擎：
// 资源在注册时声明字段规则与关联元数据（一对一/一对多、行锁、级联、业务钩子），
// 引擎负责校验、在单个事务内按关联树保存整个实体图、并在固定节点调用钩子。
package resource

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entity 是可被引擎持久化的行。所有模型内嵌 Base 即满足该接口。
type Entity interface {
	GetID() string
	EnsureID()
}

// Base 通用模型基类，uuid 主键。
type Base struct {
	ID        string    `gorm:"primaryKey;type:char(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Base) GetID() string { return b.ID }

// EnsureID 在首次写入前生成主键。
func (b *Base) EnsureID() {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
}

// entityType 返回实体的具体类型名，用作锁缓存与内存存储的表键。
func entityType(e Entity) string {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// FieldValue 按列名读取实体字段值。依次匹配 gorm 的 column 标签、json 标签
// 与字段名的 snake_case 形式。存储实现用它解释 where 条件的键。
func FieldValue(e Entity, column string) (any, bool) {
	v := reflect.ValueOf(e)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return structFieldValue(v, column)
}

func structFieldValue(v reflect.Value, column string) (any, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			if fv, ok := structFieldValue(v.Field(i), column); ok {
				return fv, true
			}
			continue
		}
		if columnName(f) == column {
			return v.Field(i).Interface(), true
		}
	}
	return nil, false
}

func columnName(f reflect.StructField) string {
	if tag := f.Tag.Get("gorm"); tag != "" {
		for _, part := range strings.Split(tag, ";") {
			if name, ok := strings.CutPrefix(part, "column:"); ok {
				return name
			}
		}
	}
	if tag := f.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return toSnake(f.Name)
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
