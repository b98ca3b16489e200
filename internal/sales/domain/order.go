package domain

import (
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/erp/pkg/resource"
)

// Consumer 客户
type Consumer struct {
	resource.Base
	Name  string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Phone string `gorm:"column:phone;type:varchar(32)" json:"phone"`
	// Score 累计积分，下单时由保存钩子在行锁下累加
	Score int `gorm:"column:score;not null;default:0" json:"score"`
	// DisableScore 为真时该客户不参与积分
	DisableScore bool `gorm:"column:disable_score;not null;default:0" json:"disableScore"`
}

func (Consumer) TableName() string { return "consumers" }

// User 操作员
type User struct {
	resource.Base
	Name string `gorm:"column:name;type:varchar(255);not null" json:"name"`
}

func (User) TableName() string { return "users" }

// SaleOrder 销售单
type SaleOrder struct {
	resource.Base
	// Discount 折扣（6-10 折）
	Discount        float64         `gorm:"column:discount;type:decimal(4,2)" json:"discount"`
	DiscountPrice   decimal.Decimal `gorm:"column:discount_price;type:decimal(10,2)" json:"discountPrice"`
	DiscountComment string          `gorm:"column:discount_comment;type:text" json:"discountComment"`
	// Price 订单总额，保存时由物品清单聚合得出
	Price decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null" json:"price"`
	// Pay 实收金额
	Pay     decimal.Decimal `gorm:"column:pay;type:decimal(10,2)" json:"pay"`
	Score   int             `gorm:"column:score;not null;default:0" json:"score"`
	PayType string          `gorm:"column:pay_type;type:varchar(32)" json:"payType"`
	Comment string          `gorm:"column:comment;type:text" json:"comment"`

	FkConsumer string `gorm:"column:fk_consumer;type:char(36);index" json:"fk_consumer"`
	FkUser     string `gorm:"column:fk_user;type:char(36);index" json:"fk_user"`
}

func (SaleOrder) TableName() string { return "sale_orders" }

// SaleOrderItem 销售单物品清单条目
type SaleOrderItem struct {
	resource.Base
	Count int `gorm:"column:count;not null" json:"count"`
	// Price 成交单价
	Price decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null" json:"price"`
	// PurchasePrice 下单时的进价快照，由保存钩子从商品上复制
	PurchasePrice decimal.Decimal `gorm:"column:purchase_price;type:decimal(10,2)" json:"purchasePrice"`

	FkOrder   string `gorm:"column:fk_order;type:char(36);index" json:"fk_order"`
	FkProduct string `gorm:"column:fk_product;type:char(36);index" json:"fk_product"`
}

func (SaleOrderItem) TableName() string { return "sale_order_items" }
