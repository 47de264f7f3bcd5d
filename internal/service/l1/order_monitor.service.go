package l1_service

import (
	"context"
	"fmt"
	"sync"

	"algotrader/internal/domain"
	"algotrader/internal/logger"
	"algotrader/internal/repository"
	"algotrader/internal/util"

	"github.com/robfig/cron/v3"
)

// OrderMonitorService polls the broker for open local orders and replays
// whatever the order stream missed through the execution service.
type OrderMonitorService interface {
	Start(ctx context.Context, schedule string) error
	Stop()
	Poll(ctx context.Context) (int, error)
}

type OrderMonitorServiceInput struct {
	Broker                repository.BrokerRepository
	OrderRepository       repository.OrderRepository
	OrderExecutionService OrderExecutionService
	Clock                 util.Clock
}

type orderMonitorServiceHandler struct {
	Broker                repository.BrokerRepository
	OrderRepository       repository.OrderRepository
	OrderExecutionService OrderExecutionService
	Clock                 util.Clock

	mu   sync.Mutex
	cron *cron.Cron
}

func NewOrderMonitorService(in OrderMonitorServiceInput) OrderMonitorService {
	clock := in.Clock
	if clock == nil {
		clock = util.NewClock()
	}
	return &orderMonitorServiceHandler{
		Broker:                in.Broker,
		OrderRepository:       in.OrderRepository,
		OrderExecutionService: in.OrderExecutionService,
		Clock:                 clock,
	}
}

func (h *orderMonitorServiceHandler) Start(ctx context.Context, schedule string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cron != nil {
		return nil
	}
	log := logger.FromContext(ctx)
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := h.Poll(ctx); err != nil {
			log.Errorw("order monitor poll failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("%w: bad monitor schedule %q: %w", domain.ErrInvalidConfig, schedule, err)
	}
	c.Start()
	h.cron = c
	log.Infow("started order monitor", "schedule", schedule)
	return nil
}

func (h *orderMonitorServiceHandler) Stop() {
	h.mu.Lock()
	c := h.cron
	h.cron = nil
	h.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func eventForStatus(status domain.OrderStatus) domain.OrderEventType {
	switch status {
	case domain.OrderStatusFilled:
		return domain.OrderEventFill
	case domain.OrderStatusPartiallyFilled:
		return domain.OrderEventPartialFill
	case domain.OrderStatusAccepted:
		return domain.OrderEventNew
	}
	return domain.OrderEventType(status)
}

func (h *orderMonitorServiceHandler) Poll(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)
	open, err := h.OrderRepository.List(ctx, repository.OrderListFilter{Statuses: domain.OpenOrderStatuses})
	if err != nil {
		return 0, fmt.Errorf("failed to list open orders: %w", err)
	}

	replayed := 0
	for _, local := range open {
		remote, err := h.Broker.GetOrderByClientOrderID(ctx, local.ClientOrderID)
		if err != nil {
			log.Warnw("failed to fetch broker order", "client_order_id", local.ClientOrderID, "error", err)
			continue
		}
		if remote.Status == local.Status && remote.FilledQty.Equal(local.FilledQty) {
			continue
		}
		ts := remote.UpdatedAt
		if ts.IsZero() {
			ts = h.Clock.Now()
		}
		e := domain.OrderEvent{
			Event:     eventForStatus(remote.Status),
			Order:     *remote,
			Timestamp: ts,
		}
		if _, err := h.OrderExecutionService.HandleOrderEvent(ctx, e); err != nil {
			log.Errorw("failed to replay order event", "client_order_id", local.ClientOrderID, "error", err)
			continue
		}
		replayed++
	}
	if replayed > 0 {
		log.Infow("order monitor replayed missed events", "count", replayed)
	}
	return replayed, nil
}
