package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/girish1208dev/print-service/config"
	"github.com/girish1208dev/print-service/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentEncodes bounds the number of previews encoded at once
const maxConcurrentEncodes = 4

// discardTimeout bounds cleanup of previews stored for a cancelled build
const discardTimeout = 10 * time.Second

// NewOrderID returns "ORD-" followed by a time-ordered UUIDv7
func NewOrderID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate order id: %w", err)
	}
	return models.OrderIDPrefix + id.String(), nil
}

// OrderBuilder assembles canonical orders from transient client state
type OrderBuilder struct {
	encoder     PreviewEncoder
	placeholder string
	now         func() time.Time
	newID       func() (string, error)
}

// BuilderOption configures an OrderBuilder
type BuilderOption func(*OrderBuilder)

// WithClock overrides the clock used for order timestamps
func WithClock(now func() time.Time) BuilderOption {
	return func(b *OrderBuilder) { b.now = now }
}

// WithIDGenerator overrides the order id generator
func WithIDGenerator(newID func() (string, error)) BuilderOption {
	return func(b *OrderBuilder) { b.newID = newID }
}

// WithPlaceholder overrides the fallback preview base URL
func WithPlaceholder(base string) BuilderOption {
	return func(b *OrderBuilder) { b.placeholder = base }
}

// NewOrderBuilder creates a builder that makes previews durable with encoder
func NewOrderBuilder(encoder PreviewEncoder, opts ...BuilderOption) *OrderBuilder {
	b := &OrderBuilder{
		encoder:     encoder,
		placeholder: config.DefaultPlaceholderImageURL,
		now:         time.Now,
		newID:       NewOrderID,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildOrder validates the inputs and returns a fully populated order.
// Either a complete order is returned or nothing is.
func (b *OrderBuilder) BuildOrder(ctx context.Context, photos []models.Photo, customer models.CustomerInfo, delivery models.DeliveryOption) (models.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "OrderBuilder.BuildOrder")
	defer span.End()

	customer = models.CustomerInfo{
		Name:     strings.TrimSpace(customer.Name),
		Phone:    strings.TrimSpace(customer.Phone),
		Location: strings.TrimSpace(customer.Location),
	}

	var missing []string
	if len(photos) == 0 {
		missing = append(missing, "photos")
	}
	missing = append(missing, customer.MissingFields()...)
	if len(missing) > 0 {
		return models.Order{}, &ValidationError{Fields: missing}
	}

	if !delivery.IsExpress() {
		delivery = models.StandardDelivery()
	}

	id, err := b.newID()
	if err != nil {
		return models.Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", id), attribute.Int("order.photos", len(photos)))

	refs, err := b.durableRefs(ctx, id, photos)
	if err != nil {
		return models.Order{}, err
	}

	return models.Order{
		ID:        id,
		Photos:    refs,
		Customer:  customer,
		Delivery:  delivery,
		TotalCost: CalculateTotal(len(refs), delivery),
		CreatedAt: b.now().UTC().Truncate(time.Millisecond),
	}, nil
}

// durableRefs encodes transient previews concurrently, preserving photo order
func (b *OrderBuilder) durableRefs(ctx context.Context, orderID string, photos []models.Photo) ([]models.PhotoRef, error) {
	refs := make([]models.PhotoRef, len(photos))
	stored := make([]*models.Photo, len(photos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEncodes)
	for i, photo := range photos {
		if photo.ID == "" {
			photo.ID = uuid.NewString()
		}
		refs[i] = models.PhotoRef{ID: photo.ID, FileName: photo.FileName, Preview: photo.Preview}
		if !photo.HasTransientPreview() {
			continue
		}

		g.Go(func() error {
			preview, err := b.encoder.Encode(gctx, photo)
			if err != nil {
				encErr := &EncodingError{PhotoID: photo.ID, Err: err}
				log.Warn().Err(encErr).Str("order_id", orderID).Msg("Using placeholder preview")
				previewFallbacks.Inc()
				preview = PlaceholderURL(b.placeholder, photo.ID)
			} else {
				stored[i] = &photo
			}
			refs[i].Preview = preview
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A cancelled caller gets no order rather than one full of placeholders
	if err := ctx.Err(); err != nil {
		b.discard(ctx, orderID, stored)
		return nil, fmt.Errorf("order build cancelled: %w", err)
	}
	return refs, nil
}

// discard removes previews already stored for an order that will not be produced
func (b *OrderBuilder) discard(ctx context.Context, orderID string, stored []*models.Photo) {
	discarder, ok := b.encoder.(PreviewDiscarder)
	if !ok {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	for _, photo := range stored {
		if photo == nil {
			continue
		}
		if err := discarder.Discard(cleanupCtx, *photo); err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Str("photo_id", photo.ID).Msg("Failed to discard stored preview")
		}
	}
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
