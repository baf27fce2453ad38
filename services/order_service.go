package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/girish1208dev/print-service/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// OrderService drives the customer side of the order lifecycle
type OrderService struct {
	builder       *OrderBuilder
	cache         *OrderCache
	reconciler    *ReconciliationService
	dispatcher    Dispatcher
	notifyTimeout time.Duration

	background sync.WaitGroup
}

// NewOrderService wires the order lifecycle collaborators
func NewOrderService(builder *OrderBuilder, cache *OrderCache, reconciler *ReconciliationService, dispatcher Dispatcher, notifyTimeout time.Duration) *OrderService {
	return &OrderService{
		builder:       builder,
		cache:         cache,
		reconciler:    reconciler,
		dispatcher:    dispatcher,
		notifyTimeout: notifyTimeout,
	}
}

var orderServiceInstance *OrderService

// InitOrderService initializes the order service
func InitOrderService(builder *OrderBuilder, cache *OrderCache, reconciler *ReconciliationService, dispatcher Dispatcher, notifyTimeout time.Duration) *OrderService {
	orderServiceInstance = NewOrderService(builder, cache, reconciler, dispatcher, notifyTimeout)
	return orderServiceInstance
}

// GetOrderService returns the initialized order service
func GetOrderService() *OrderService {
	return orderServiceInstance
}

// SetOrderService sets the order service instance (primarily for testing)
func SetOrderService(service *OrderService) {
	orderServiceInstance = service
}

// SubmitOrder builds the order and caches it locally. Once this returns without error the
// order is saved; remote propagation and the operator notification happen in the background
// and their failures are never reported to the caller.
func (s *OrderService) SubmitOrder(ctx context.Context, photos []models.Photo, customer models.CustomerInfo, delivery models.DeliveryOption) (models.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "OrderService.SubmitOrder")
	defer span.End()

	order, err := s.builder.BuildOrder(ctx, photos, customer, delivery)
	if err != nil {
		span.RecordError(err)
		return models.Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	if err := s.cache.RecordSubmission(order); err != nil {
		span.RecordError(err)
		return models.Order{}, fmt.Errorf("failed to save order locally: %w", err)
	}
	ordersSubmitted.Inc()
	log.Info().
		Str("order_id", order.ID).
		Int("photos", order.PhotoCount()).
		Int("total_cost", order.TotalCost).
		Msg("Order saved")

	NotifyAsync(s.dispatcher, order, s.notifyTimeout)
	s.ReconcileAsync(TriggerSubmission)

	return order, nil
}

// ReconcileAsync starts a reconciliation pass detached from any request
func (s *OrderService) ReconcileAsync(trigger ReconcileTrigger) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.reconciler.Reconcile(context.Background(), trigger); err != nil {
			log.Error().Err(err).Str("trigger", string(trigger)).Msg("Reconciliation could not read the local cache")
		}
	}()
}

// Wait blocks until background reconciliation passes have finished
func (s *OrderService) Wait() {
	s.background.Wait()
}

// Start folds a completed current order into history and reconciles
func (s *OrderService) Start(ctx context.Context) (*ReconcileReport, error) {
	folded, err := s.cache.FoldCurrentIntoHistory()
	if err != nil {
		return nil, fmt.Errorf("failed to fold current order into history: %w", err)
	}
	if folded {
		log.Info().Msg("Moved completed order into history")
	}
	return s.reconciler.Reconcile(ctx, TriggerAppStart)
}

// CurrentOrder returns the most recently submitted order, or nil
func (s *OrderService) CurrentOrder() (*models.Order, error) {
	return s.cache.CurrentOrder()
}

// History returns previously submitted orders, newest first
func (s *OrderService) History() ([]models.Order, error) {
	return s.cache.History()
}

// SaveCustomerDraft keeps the customer info across reloads
func (s *OrderService) SaveCustomerDraft(info models.CustomerInfo) error {
	return s.cache.SaveCustomerDraft(info)
}

// LoadCustomerDraft returns the saved customer info, or an empty value
func (s *OrderService) LoadCustomerDraft() (models.CustomerInfo, error) {
	return s.cache.CustomerDraft()
}
