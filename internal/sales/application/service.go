package application

import (
	"context"
	"time"

	"github.com/wyfcoding/erp/internal/sales/domain"
	"github.com/wyfcoding/erp/pkg/logger"
	"github.com/wyfcoding/erp/pkg/resource"
)

// SalesApplicationService 销售单资源的保存/查询/删除入口。
// 保存与删除成功提交后发布领域事件，事件失败只记日志，不影响业务结果。
type SalesApplicationService struct {
	store     resource.Store
	res       *resource.Resource
	publisher domain.EventPublisher
}

func NewSalesApplicationService(store resource.Store, publisher domain.EventPublisher) *SalesApplicationService {
	return &SalesApplicationService{store: store, res: saleOrderResource(), publisher: publisher}
}

func (s *SalesApplicationService) Save(ctx context.Context, payload resource.Fields) (*resource.Handle, error) {
	isCreate := payload.String("id") == ""
	h, err := resource.Save(ctx, s.store, s.res, payload)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "sale order saved", "id", h.ID(), "created", isCreate)

	if isCreate && s.publisher != nil {
		order := h.Model().(*domain.SaleOrder)
		event := domain.OrderCreatedEvent{
			OrderID:    order.ID,
			ConsumerID: order.FkConsumer,
			Price:      order.Price,
			ItemCount:  len(h.Rels("items")),
			Timestamp:  time.Now(),
		}
		if err := s.publisher.Publish(ctx, domain.TopicOrderCreated, order.ID, event); err != nil {
			logger.Error(ctx, "failed to publish order created event", "id", order.ID, "error", err)
		}
	}
	return h, nil
}

func (s *SalesApplicationService) List(ctx context.Context, q resource.ListQuery) ([]*resource.Handle, int64, error) {
	return resource.List(ctx, s.store, s.res, q)
}

func (s *SalesApplicationService) Info(ctx context.Context, id string) (*resource.Handle, error) {
	return resource.Info(ctx, s.store, s.res, id)
}

func (s *SalesApplicationService) Delete(ctx context.Context, id string) error {
	if err := resource.Delete(ctx, s.store, s.res, id); err != nil {
		return err
	}
	logger.Info(ctx, "sale order deleted", "id", id)

	if s.publisher != nil {
		event := domain.OrderDeletedEvent{OrderID: id, Timestamp: time.Now()}
		if err := s.publisher.Publish(ctx, domain.TopicOrderDeleted, id, event); err != nil {
			logger.Error(ctx, "failed to publish order deleted event", "id", id, "error", err)
		}
	}
	return nil
}
