package application

import (
	"github.com/shopspring/decimal"

	catalog "github.com/wyfcoding/erp/internal/catalog/domain"
	"github.com/wyfcoding/erp/internal/sales/domain"
	"github.com/wyfcoding/erp/pkg/resource"
)

// saleOrderResource 销售单资源声明。
//
// 关联树：
//
//	SaleOrder ─┬─ consumer（客户，加锁引用）
//	           ├─ user（操作员，仅预加载）
//	           └─ items（物品清单，从属集合，级联）
//	                 └─ product（商品，加锁引用）
//
// 商品与客户不属于本次保存，但会在同一事务内被钩子修改（库存、积分），
// 所以都声明为加锁引用，串行化并发下单。
func saleOrderResource() *resource.Resource {
	return resource.MustNew(&resource.Resource{
		Name:  "SaleOrder",
		Model: func() resource.Entity { return &domain.SaleOrder{} },
		Schema: resource.Schema{
			Fields: map[string]resource.Rule{
				"discount":        "min=6,max=10",
				"discountPrice":   "min=0",
				"discountComment": "",
				"pay":             "min=0",
				"score":           "intlike",
				"payType":         "",
				"comment":         "",
				"consumer":        "uuid4",
				"user":            "uuid4",
				"items":           "min=1",
			},
			CreateRequires: "discount,discountPrice,pay,score,payType,consumer,items",
		},
		Relations: []*resource.Relation{
			{
				Name:       "consumer",
				Model:      func() resource.Entity { return &domain.Consumer{} },
				ForeignKey: "fk_consumer",
				Lock:       true,
			},
			{
				Name:       "user",
				Model:      func() resource.Entity { return &domain.User{} },
				ForeignKey: "fk_user",
			},
			{
				Name:       "items",
				Model:      func() resource.Entity { return &domain.SaleOrderItem{} },
				ForeignKey: "fk_order",
				Many:       true,
				Cascade:    true,
				Schema: resource.Schema{
					Fields: map[string]resource.Rule{
						"count":   "intlike,min=1",
						"price":   "min=0",
						"product": "uuid4",
					},
					Requires: "count,price,product",
				},
				Nested: []*resource.Relation{
					{
						Name:       "product",
						Model:      func() resource.Entity { return &catalog.Product{} },
						ForeignKey: "fk_product",
						Lock:       true,
					},
				},
				OnValidateItem: validateOrderItem,
				OnPersistItem:  persistItemProduct,
			},
		},
		ListIncludes: []string{"consumer", "user"},
		OnSave:       aggregateOrderPrice,
		OnCreate:     creditConsumerScore,
	})
}

// validateOrderItem 注入进价快照并结算库存扣减。
// 新条目扣减全部数量；更新条目只扣减数量差，这样改单不会重复扣库存。
// 库存不足时否决整个保存。
func validateOrderItem(fields resource.Fields, item *resource.Handle, sc *resource.SaveContext) error {
	product := item.Rel("product").Model().(*catalog.Product)
	fields["purchasePrice"] = product.PurchasePrice

	count, _ := fields.Int("count")
	stock := product.Stock
	touched := false
	if item.IsNew() {
		stock -= count
		touched = true
	} else if current := item.Model().(*domain.SaleOrderItem); count != current.Count {
		stock -= count - current.Count
		touched = true
	}
	if touched {
		if stock < 0 {
			return resource.Domainf("商品 [%s] 库存不足", product.Name)
		}
		product.Stock = stock
	}
	return nil
}

// persistItemProduct 在同一事务内保存被条目修改过的商品。
func persistItemProduct(item *resource.Handle, sc *resource.SaveContext) error {
	return sc.Tx().Update(sc.Context(), item.Rel("product").Model())
}

// aggregateOrderPrice 订单总额 = Σ 数量 × 单价，保留两位小数。
func aggregateOrderPrice(root *resource.Handle, sc *resource.SaveContext) error {
	order := root.Model().(*domain.SaleOrder)
	total := decimal.Zero
	for _, item := range root.Rels("items") {
		it := item.Model().(*domain.SaleOrderItem)
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Count))))
	}
	order.Price = total.Round(2)
	return nil
}

// creditConsumerScore 创建订单时给客户累加积分；
// 关闭积分的客户不累加，同时把订单上的积分清零。
func creditConsumerScore(root *resource.Handle, sc *resource.SaveContext) error {
	order := root.Model().(*domain.SaleOrder)
	consumer := root.Rel("consumer").Model().(*domain.Consumer)
	if consumer.DisableScore {
		order.Score = 0
		return nil
	}
	consumer.Score += order.Score
	return sc.Tx().Update(sc.Context(), consumer)
}
