package resource_test

import (
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/erp/pkg/resource"
)

// 测试夹具：一个带加锁引用（buyer、sku）与从属集合（items）的订单资源，
// 钩子覆盖库存扣减、否决、聚合与一次性副作用。

type buyer struct {
	resource.Base
	Name    string `json:"name"`
	Credits int    `json:"credits"`
}

type sku struct {
	resource.Base
	Code  string `json:"code"`
	Units int    `json:"units"`
}

type order struct {
	resource.Base
	Ref     string          `json:"ref"`
	Total   decimal.Decimal `json:"total"`
	FkBuyer string          `json:"fk_buyer"`
}

type orderItem struct {
	resource.Base
	Qty     int    `json:"qty"`
	FkOrder string `json:"fk_order"`
	FkSku   string `json:"fk_sku"`
}

func orderResource(cascade bool) *resource.Resource {
	return resource.MustNew(&resource.Resource{
		Name:  "Order",
		Model: func() resource.Entity { return &order{} },
		Schema: resource.Schema{
			Fields: map[string]resource.Rule{
				"ref":   "",
				"buyer": "uuid4",
				"items": "min=1",
			},
			CreateRequires: "buyer,items",
		},
		Relations: []*resource.Relation{
			{
				Name:       "buyer",
				Model:      func() resource.Entity { return &buyer{} },
				ForeignKey: "fk_buyer",
				Lock:       true,
			},
			{
				Name:       "items",
				Model:      func() resource.Entity { return &orderItem{} },
				ForeignKey: "fk_order",
				Many:       true,
				Cascade:    cascade,
				Schema: resource.Schema{
					Fields: map[string]resource.Rule{
						"qty": "intlike,min=1",
						"sku": "uuid4",
					},
					Requires: "qty,sku",
				},
				Nested: []*resource.Relation{
					{
						Name:       "sku",
						Model:      func() resource.Entity { return &sku{} },
						ForeignKey: "fk_sku",
						Lock:       true,
					},
				},
				OnValidateItem: func(fields resource.Fields, item *resource.Handle, sc *resource.SaveContext) error {
					stock := item.Rel("sku").Model().(*sku)
					qty, _ := fields.Int("qty")
					delta := qty
					if !item.IsNew() {
						delta = qty - item.Model().(*orderItem).Qty
					}
					if delta != 0 {
						if stock.Units-delta < 0 {
							return resource.Domainf("sku %s out of stock", stock.Code)
						}
						stock.Units -= delta
					}
					return nil
				},
				OnPersistItem: func(item *resource.Handle, sc *resource.SaveContext) error {
					return sc.Tx().Update(sc.Context(), item.Rel("sku").Model())
				},
			},
		},
		ListIncludes: []string{"buyer"},
		OnSave: func(root *resource.Handle, sc *resource.SaveContext) error {
			total := decimal.Zero
			for _, item := range root.Rels("items") {
				total = total.Add(decimal.NewFromInt(int64(item.Model().(*orderItem).Qty)))
			}
			root.Model().(*order).Total = total.Round(2)
			return nil
		},
		OnCreate: func(root *resource.Handle, sc *resource.SaveContext) error {
			b := root.Rel("buyer").Model().(*buyer)
			b.Credits++
			return sc.Tx().Update(sc.Context(), b)
		},
	})
}

func item(qty int, skuID string) map[string]any {
	return map[string]any{"qty": qty, "sku": skuID}
}

func persistedItem(id string, qty int, skuID string) map[string]any {
	return map[string]any{"id": id, "qty": qty, "sku": skuID}
}
