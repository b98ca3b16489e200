package domain

import (
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/erp/pkg/resource"
)

// ProductType 商品分类
type ProductType struct {
	resource.Base
	Name string `gorm:"column:name;type:varchar(255);not null" json:"name"`
}

func (ProductType) TableName() string { return "product_types" }

// Product 商品
type Product struct {
	resource.Base
	Name          string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Comment       string          `gorm:"column:comment;type:text" json:"comment"`
	Code          string          `gorm:"column:code;type:varchar(64)" json:"code"`
	Unit          string          `gorm:"column:unit;type:varchar(32)" json:"unit"`
	Stock         int             `gorm:"column:stock;not null;default:0" json:"stock"`
	MinStock      int             `gorm:"column:min_stock;not null;default:0" json:"minStock"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:decimal(10,2);not null" json:"unitPrice"`
	PurchasePrice decimal.Decimal `gorm:"column:purchase_price;type:decimal(10,2);not null" json:"purchasePrice"`
	FkType        string          `gorm:"column:fk_type;type:char(36);index" json:"fk_type"`
}

func (Product) TableName() string { return "products" }
