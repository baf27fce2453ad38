package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/girish1208dev/print-service/models"
	"github.com/rs/zerolog/log"
)

// Authorizer decides whether a credential may use the admin surface.
// It returns ErrUnauthorized (possibly wrapped) when access is denied.
type Authorizer interface {
	Authorize(ctx context.Context, credential string) error
}

// AuthorizerFunc adapts a function to the Authorizer interface
type AuthorizerFunc func(ctx context.Context, credential string) error

func (f AuthorizerFunc) Authorize(ctx context.Context, credential string) error {
	return f(ctx, credential)
}

// SharedSecretAuthorizer accepts exactly one configured secret
type SharedSecretAuthorizer struct {
	secret []byte
}

// NewSharedSecretAuthorizer creates an authorizer for secret. A blank secret denies everyone.
func NewSharedSecretAuthorizer(secret string) *SharedSecretAuthorizer {
	return &SharedSecretAuthorizer{secret: []byte(secret)}
}

func (a *SharedSecretAuthorizer) Authorize(_ context.Context, credential string) error {
	if len(a.secret) == 0 || subtle.ConstantTimeCompare(a.secret, []byte(credential)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// AnyAuthorizer accepts a credential when any of its authorizers does
type AnyAuthorizer []Authorizer

func (a AnyAuthorizer) Authorize(ctx context.Context, credential string) error {
	for _, authorizer := range a {
		if err := authorizer.Authorize(ctx, credential); err == nil {
			return nil
		}
	}
	return ErrUnauthorized
}

// AdminService exposes the remote order list, reprint and live stream behind an Authorizer
type AdminService struct {
	authorizer Authorizer
	remote     RemoteOrderStore
	reconciler *ReconciliationService
	timeout    time.Duration
}

// NewAdminService creates the admin service. reconciler may be nil when no local cache is attached.
func NewAdminService(authorizer Authorizer, remote RemoteOrderStore, reconciler *ReconciliationService, timeout time.Duration) *AdminService {
	return &AdminService{
		authorizer: authorizer,
		remote:     remote,
		reconciler: reconciler,
		timeout:    timeout,
	}
}

var adminServiceInstance *AdminService

// InitAdminService initializes the admin service
func InitAdminService(authorizer Authorizer, remote RemoteOrderStore, reconciler *ReconciliationService, timeout time.Duration) *AdminService {
	adminServiceInstance = NewAdminService(authorizer, remote, reconciler, timeout)
	return adminServiceInstance
}

// GetAdminService returns the initialized admin service
func GetAdminService() *AdminService {
	return adminServiceInstance
}

// SetAdminService sets the admin service instance (primarily for testing)
func SetAdminService(service *AdminService) {
	adminServiceInstance = service
}

// Authorize checks a credential without doing anything else
func (s *AdminService) Authorize(ctx context.Context, credential string) error {
	return s.authorizer.Authorize(ctx, credential)
}

// ListOrders reconciles pending local orders, then lists every remote order newest first
func (s *AdminService) ListOrders(ctx context.Context, credential string) ([]models.Order, error) {
	if err := s.authorizer.Authorize(ctx, credential); err != nil {
		return nil, err
	}

	if s.reconciler != nil {
		if _, err := s.reconciler.Reconcile(ctx, TriggerAdminLoad); err != nil {
			log.Error().Err(err).Msg("Reconciliation before admin load failed")
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	records, err := s.remote.ListAll(callCtx)
	if err != nil {
		return nil, &RemoteFailure{Op: "list", Err: err}
	}

	orders := make([]models.Order, 0, len(records))
	for _, record := range records {
		orders = append(orders, recordToOrder(record))
	}
	return orders, nil
}

// Reconcile runs an explicit refresh
func (s *AdminService) Reconcile(ctx context.Context, credential string) (*ReconcileReport, error) {
	if err := s.authorizer.Authorize(ctx, credential); err != nil {
		return nil, err
	}
	if s.reconciler == nil {
		return &ReconcileReport{Trigger: TriggerRefresh}, nil
	}
	return s.reconciler.Reconcile(ctx, TriggerRefresh)
}

// GetOrder loads one remote order
func (s *AdminService) GetOrder(ctx context.Context, credential, id string) (models.Order, error) {
	if err := s.authorizer.Authorize(ctx, credential); err != nil {
		return models.Order{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	record, err := s.remote.GetByID(callCtx, id)
	if errors.Is(err, ErrOrderNotFound) {
		return models.Order{}, err
	}
	if err != nil {
		return models.Order{}, &RemoteFailure{Op: "get", OrderID: id, Err: err}
	}
	return recordToOrder(record), nil
}

// Reprint renders the printable sheet of one remote order
func (s *AdminService) Reprint(ctx context.Context, credential, id string) (string, error) {
	order, err := s.GetOrder(ctx, credential, id)
	if err != nil {
		return "", err
	}
	return FormatPrintableOrder(order)
}

// Subscribe streams newly inserted orders until ctx is done
func (s *AdminService) Subscribe(ctx context.Context, credential string) (<-chan models.Order, error) {
	if err := s.authorizer.Authorize(ctx, credential); err != nil {
		return nil, err
	}

	records, err := s.remote.SubscribeToInserts(ctx)
	if err != nil {
		return nil, &RemoteFailure{Op: "subscribe", Err: err}
	}

	out := make(chan models.Order)
	go func() {
		defer close(out)
		for record := range records {
			select {
			case out <- recordToOrder(record):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// recordToOrder maps a remote record; an inconsistent payload is logged but still shown
func recordToOrder(record models.OrderRecord) models.Order {
	order, err := record.ToOrder()
	if err != nil {
		log.Warn().Err(err).Str("order_id", record.ID).Msg("Remote order record is inconsistent")
	}
	return order
}
