package resource

import "encoding/json"

// Handle 包装一行在途或已持久化的数据，以及本次操作中已解析的关联句柄。
// 句柄只在一次操作内存活，不会被持久化。
type Handle struct {
	model    Entity
	isNew    bool
	rels     map[string]*Handle
	relLists map[string][]*Handle
}

func newHandle(model Entity, isNew bool) *Handle {
	return &Handle{model: model, isNew: isNew}
}

func (h *Handle) Model() Entity { return h.model }

func (h *Handle) ID() string { return h.model.GetID() }

// IsNew 本行在本次操作开始前是否不存在。
func (h *Handle) IsNew() bool { return h.isNew }

// Rel 返回已解析的单关联句柄，未解析时为 nil。
func (h *Handle) Rel(name string) *Handle {
	return h.rels[name]
}

// Rels 返回已解析的多关联句柄，顺序与载荷一致。
func (h *Handle) Rels(name string) []*Handle {
	return h.relLists[name]
}

func (h *Handle) setRel(name string, child *Handle) {
	if h.rels == nil {
		h.rels = map[string]*Handle{}
	}
	h.rels[name] = child
}

func (h *Handle) addRel(name string, child *Handle) {
	if h.relLists == nil {
		h.relLists = map[string][]*Handle{}
	}
	h.relLists[name] = append(h.relLists[name], child)
}

// MarshalJSON 输出模型字段并内联已解析的关联，供接口层直接作为响应体。
func (h *Handle) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(h.model)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	for name, rel := range h.rels {
		out[name] = rel
	}
	for name, list := range h.relLists {
		out[name] = list
	}
	return json.Marshal(out)
}
