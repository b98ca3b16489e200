package application

import (
	"context"

	"github.com/wyfcoding/erp/internal/catalog/domain"
	"github.com/wyfcoding/erp/pkg/logger"
	"github.com/wyfcoding/erp/pkg/resource"
)

// CatalogApplicationService 商品资源的保存/查询/删除入口。
type CatalogApplicationService struct {
	store resource.Store
	res   *resource.Resource
}

func NewCatalogApplicationService(store resource.Store) *CatalogApplicationService {
	return &CatalogApplicationService{store: store, res: productResource()}
}

// productResource 商品资源声明：字段规则、创建必填集与商品分类引用。
func productResource() *resource.Resource {
	return resource.MustNew(&resource.Resource{
		Name:  "Product",
		Model: func() resource.Entity { return &domain.Product{} },
		Schema: resource.Schema{
			Fields: map[string]resource.Rule{
				"name":          "min=3",
				"comment":       "",
				"code":          "",
				"unit":          "",
				"stock":         "intlike",
				"minStock":      "intlike",
				"unitPrice":     "min=0",
				"purchasePrice": "min=0",
				"fk_type":       "uuid4",
			},
			CreateRequires: "name,stock,minStock,unitPrice,purchasePrice,fk_type",
		},
		Relations: []*resource.Relation{
			{
				Name:       "fk_type",
				Model:      func() resource.Entity { return &domain.ProductType{} },
				ForeignKey: "fk_type",
			},
		},
		ListIncludes: []string{"fk_type"},
	})
}

func (s *CatalogApplicationService) Save(ctx context.Context, payload resource.Fields) (*resource.Handle, error) {
	h, err := resource.Save(ctx, s.store, s.res, payload)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "product saved", "id", h.ID())
	return h, nil
}

func (s *CatalogApplicationService) List(ctx context.Context, q resource.ListQuery) ([]*resource.Handle, int64, error) {
	return resource.List(ctx, s.store, s.res, q)
}

func (s *CatalogApplicationService) Info(ctx context.Context, id string) (*resource.Handle, error) {
	return resource.Info(ctx, s.store, s.res, id)
}

func (s *CatalogApplicationService) Delete(ctx context.Context, id string) error {
	if err := resource.Delete(ctx, s.store, s.res, id); err != nil {
		return err
	}
	logger.Info(ctx, "product deleted", "id", id)
	return nil
}
