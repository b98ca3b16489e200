package resource

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
)

// Fields 是一次保存操作的候选字段值，键为载荷字段名。
// 钩子可以在校验之后、写入之前修改它（例如注入进价快照）。
type Fields map[string]any

func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Int 读取整型字段。JSON 解码出的数字是 float64，这里统一收敛。
func (f Fields) Int(key string) (int, bool) {
	switch v := f[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func (f Fields) Decimal(key string) (decimal.Decimal, bool) {
	switch v := f[key].(type) {
	case decimal.Decimal:
		return v, true
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func decimalHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case string:
		return decimal.NewFromString(v)
	default:
		return nil, fmt.Errorf("cannot decode %s into decimal", from)
	}
}

// ApplyTo 将字段值写入模型结构体，按 json 标签匹配字段名。
func (f Fields) ApplyTo(model Entity) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           model,
		TagName:          "json",
		Squash:           true,
		WeaklyTypedInput: true,
		DecodeHook:       decimalHook,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(f))
}
