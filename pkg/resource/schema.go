package resource

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Rule 是单个字段的校验规则，取值为 validator 的标签片段，
// 例如 "omitempty,min=3" 或 "required,uuid4"。
type Rule string

// Schema 声明一个资源（或一对多关联的条目）的字段规则。
// Requires 与 CreateRequires 都以逗号分隔：前者列出任何时候都必填的
// 字段，后者列出仅在创建时必填的字段——更新载荷允许只携带部分字段。
// 规则只作用于载荷中出现的字段，存在性单独由这两个列表检查，
// 因此合法的零值（例如价格为 0）不会被误判为缺失。
type Schema struct {
	Fields         map[string]Rule
	Requires       string
	CreateRequires string
}

var fieldRules = newFieldValidator()

func newFieldValidator() *validator.Validate {
	v := validator.New()
	// joi 的 number().integer() 对应物：JSON 数字都是 float64，这里校验无小数部分。
	_ = v.RegisterValidation("intlike", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		switch f.Kind() {
		case reflect.Float64, reflect.Float32:
			return f.Float() == math.Trunc(f.Float())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return true
		default:
			return false
		}
	})
	return v
}

// Validate 校验载荷。未声明的字段一律拒绝；isCreate 为真时额外检查
// CreateRequires 列出的字段是否齐全。返回通过校验的字段副本。
func (s Schema) Validate(payload Fields, isCreate bool) (Fields, error) {
	cleaned := make(Fields, len(payload))
	for name, value := range payload {
		rule, ok := s.Fields[name]
		if !ok {
			return nil, &ValidationError{Field: name, Constraint: "unknown", Message: "field is not declared"}
		}
		if value == nil {
			continue
		}
		if rule != "" {
			if err := fieldRules.Var(value, string(rule)); err != nil {
				return nil, asValidationError(name, err)
			}
		}
		cleaned[name] = value
	}
	if err := requireAll(cleaned, s.Requires); err != nil {
		return nil, err
	}
	if isCreate {
		if err := requireAll(cleaned, s.CreateRequires); err != nil {
			return nil, err
		}
	}
	return cleaned, nil
}

func requireAll(cleaned Fields, list string) error {
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !cleaned.Has(name) {
			return &ValidationError{Field: name, Constraint: "required", Message: "field is required"}
		}
	}
	return nil
}

func asValidationError(field string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{Field: field, Constraint: verrs[0].Tag(), Message: verrs[0].Error()}
	}
	return &ValidationError{Field: field, Constraint: "invalid", Message: err.Error()}
}
