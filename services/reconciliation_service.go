package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/girish1208dev/print-service/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ReconcileTrigger names the lifecycle event that started a reconciliation pass
type ReconcileTrigger string

const (
	TriggerAppStart   ReconcileTrigger = "app_start"
	TriggerAdminLoad  ReconcileTrigger = "admin_load"
	TriggerSubmission ReconcileTrigger = "submission"
	TriggerRefresh    ReconcileTrigger = "refresh"
)

// OrderState is the reconciliation state of one order identifier
type OrderState int

const (
	LocalOnly OrderState = iota
	Reconciling
	RemoteConfirmed
)

func (s OrderState) String() string {
	switch s {
	case Reconciling:
		return "reconciling"
	case RemoteConfirmed:
		return "remote_confirmed"
	default:
		return "local_only"
	}
}

const defaultReconcileWorkers = 4

// ReconcileFailure is a candidate left Local-Only for the next pass
type ReconcileFailure struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// ReconcileReport summarizes one reconciliation pass
type ReconcileReport struct {
	Trigger    ReconcileTrigger     `json:"trigger"`
	Candidates int                  `json:"candidates"`
	Confirmed  []string             `json:"confirmed"`
	Inserted   []string             `json:"inserted"`
	Failures   []ReconcileFailure   `json:"failures"`
	Conflicts  []*IntegrityConflict `json:"conflicts"`

	mu sync.Mutex
}

func (r *ReconcileReport) confirmed(id string) {
	r.mu.Lock()
	r.Confirmed = append(r.Confirmed, id)
	r.mu.Unlock()
	reconcileOutcomes.WithLabelValues("confirmed").Inc()
}

func (r *ReconcileReport) inserted(id string) {
	r.mu.Lock()
	r.Inserted = append(r.Inserted, id)
	r.mu.Unlock()
	reconcileOutcomes.WithLabelValues("inserted").Inc()
}

func (r *ReconcileReport) failed(id string, err error) {
	r.mu.Lock()
	r.Failures = append(r.Failures, ReconcileFailure{OrderID: id, Reason: err.Error()})
	r.mu.Unlock()
	reconcileOutcomes.WithLabelValues("failed").Inc()
	log.Warn().Err(err).Str("order_id", id).Msg("Order left for the next reconciliation")
}

func (r *ReconcileReport) conflict(c *IntegrityConflict) {
	r.mu.Lock()
	r.Conflicts = append(r.Conflicts, c)
	r.mu.Unlock()
	reconcileOutcomes.WithLabelValues("conflict").Inc()
	log.Error().Err(c).Str("order_id", c.OrderID).Msg("Integrity conflict needs operator attention")
}

// HasConflicts reports whether any integrity conflict was detected
func (r *ReconcileReport) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// ReconciliationService mirrors every locally cached order into the remote store exactly once.
// Concurrent passes are safe because the remote insert is atomic; no lock spans passes.
type ReconciliationService struct {
	cache   *OrderCache
	remote  RemoteOrderStore
	timeout time.Duration
	workers int

	mu     sync.Mutex
	states map[string]orderStatus
}

type orderStatus struct {
	state       OrderState
	fingerprint string
}

// NewReconciliationService creates a service. Each remote call is bounded by timeout.
func NewReconciliationService(cache *OrderCache, remote RemoteOrderStore, timeout time.Duration) *ReconciliationService {
	return &ReconciliationService{
		cache:   cache,
		remote:  remote,
		timeout: timeout,
		workers: defaultReconcileWorkers,
		states:  make(map[string]orderStatus),
	}
}

var reconciliationServiceInstance *ReconciliationService

// InitReconciliationService initializes the reconciliation service
func InitReconciliationService(cache *OrderCache, remote RemoteOrderStore, timeout time.Duration) *ReconciliationService {
	reconciliationServiceInstance = NewReconciliationService(cache, remote, timeout)
	return reconciliationServiceInstance
}

// GetReconciliationService returns the initialized reconciliation service
func GetReconciliationService() *ReconciliationService {
	return reconciliationServiceInstance
}

// State returns the in-memory state of an order identifier
func (s *ReconciliationService) State(orderID string) OrderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[orderID].state
}

// begin moves id to Reconciling. Returns false when this exact content is already
// Remote-Confirmed.
func (s *ReconciliationService) begin(orderID, fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[orderID]
	if st.state == RemoteConfirmed {
		return st.fingerprint != fingerprint
	}
	s.states[orderID] = orderStatus{state: Reconciling}
	return true
}

func (s *ReconciliationService) settle(orderID string, state OrderState, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Remote-Confirmed is terminal
	if s.states[orderID].state == RemoteConfirmed {
		return
	}
	s.states[orderID] = orderStatus{state: state, fingerprint: fingerprint}
}

// Reconcile runs one pass over the local cache. Only a local cache read failure is
// returned as an error; remote problems are reported and retried on the next pass.
func (s *ReconciliationService) Reconcile(ctx context.Context, trigger ReconcileTrigger) (*ReconcileReport, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ReconciliationService.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("reconcile.trigger", string(trigger)))
	reconcileRuns.WithLabelValues(string(trigger)).Inc()

	report := &ReconcileReport{
		Trigger:   trigger,
		Confirmed: []string{},
		Inserted:  []string{},
		Failures:  []ReconcileFailure{},
		Conflicts: []*IntegrityConflict{},
	}

	candidates, err := s.candidates(report)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	report.Candidates = len(candidates)

	confirmed, err := s.cache.Confirmed()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, order := range candidates {
		g.Go(func() error {
			s.reconcileOne(gctx, order, confirmed[order.ID], report)
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("reconcile.candidates", report.Candidates),
		attribute.Int("reconcile.inserted", len(report.Inserted)),
		attribute.Int("reconcile.failures", len(report.Failures)),
		attribute.Int("reconcile.conflicts", len(report.Conflicts)),
	)
	log.Info().
		Str("trigger", string(trigger)).
		Int("candidates", report.Candidates).
		Int("inserted", len(report.Inserted)).
		Int("failures", len(report.Failures)).
		Int("conflicts", len(report.Conflicts)).
		Msg("Reconciliation finished")

	return report, nil
}

// candidates unions the current order and history, deduplicated by id.
// The newest write for an id wins; a differing older copy is reported as a conflict.
func (s *ReconciliationService) candidates(report *ReconcileReport) ([]models.Order, error) {
	current, err := s.cache.CurrentOrder()
	if err != nil {
		return nil, fmt.Errorf("failed to read current order: %w", err)
	}
	history, err := s.cache.History()
	if err != nil {
		return nil, fmt.Errorf("failed to read order history: %w", err)
	}

	ordered := make([]models.Order, 0, len(history)+1)
	if current != nil {
		ordered = append(ordered, *current)
	}
	ordered = append(ordered, history...)

	seen := make(map[string]models.Order, len(ordered))
	unique := make([]models.Order, 0, len(ordered))
	for _, o := range ordered {
		if o.ID == "" {
			continue
		}
		if kept, ok := seen[o.ID]; ok {
			if !kept.SameContent(o) {
				report.conflict(&IntegrityConflict{OrderID: o.ID, Reason: "local cache holds two different orders with this id"})
			}
			continue
		}
		seen[o.ID] = o
		unique = append(unique, o)
	}
	return unique, nil
}

func (s *ReconciliationService) reconcileOne(ctx context.Context, order models.Order, confirmedFingerprint string, report *ReconcileReport) {
	fingerprint := order.Fingerprint()

	if !s.begin(order.ID, fingerprint) {
		report.confirmed(order.ID)
		return
	}
	if confirmedFingerprint == fingerprint {
		s.settle(order.ID, RemoteConfirmed, fingerprint)
		report.confirmed(order.ID)
		return
	}

	if err := order.Verify(); err != nil {
		s.settle(order.ID, LocalOnly, "")
		report.conflict(&IntegrityConflict{OrderID: order.ID, Reason: err.Error()})
		return
	}

	exists, err := s.existsByID(ctx, order.ID)
	if err != nil {
		s.settle(order.ID, LocalOnly, "")
		report.failed(order.ID, err)
		return
	}

	if !exists {
		outcome, err := s.insertIfAbsent(ctx, models.NewOrderRecord(order))
		if err != nil {
			s.settle(order.ID, LocalOnly, "")
			report.failed(order.ID, err)
			return
		}
		if outcome == Inserted {
			s.confirm(order.ID, fingerprint)
			report.inserted(order.ID)
			return
		}
		// Another pass or client inserted it first; compare below
	}

	if err := s.compareRemote(ctx, order); err != nil {
		s.settle(order.ID, LocalOnly, "")
		var conflict *IntegrityConflict
		if errors.As(err, &conflict) {
			report.conflict(conflict)
		} else {
			report.failed(order.ID, err)
		}
		return
	}

	s.confirm(order.ID, fingerprint)
	report.confirmed(order.ID)
}

// compareRemote loads the remote copy and checks it describes the same order
func (s *ReconciliationService) compareRemote(ctx context.Context, order models.Order) error {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record, err := s.remote.GetByID(callCtx, order.ID)
	if err != nil {
		return &RemoteFailure{Op: "get", OrderID: order.ID, Err: err}
	}
	remote, err := record.ToOrder()
	if err != nil {
		return &IntegrityConflict{OrderID: order.ID, Reason: err.Error()}
	}
	if !remote.SameContent(order) {
		return &IntegrityConflict{
			OrderID: order.ID,
			Reason:  fmt.Sprintf("remote order for %q differs from local order for %q", remote.Customer.Name, order.Customer.Name),
		}
	}
	return nil
}

func (s *ReconciliationService) existsByID(ctx context.Context, id string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.remote.ExistsByID(callCtx, id)
	if err != nil {
		return false, &RemoteFailure{Op: "exists", OrderID: id, Err: err}
	}
	return exists, nil
}

func (s *ReconciliationService) insertIfAbsent(ctx context.Context, record models.OrderRecord) (InsertOutcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome, err := s.remote.InsertIfAbsent(callCtx, record)
	if err != nil {
		return 0, &RemoteFailure{Op: "insert", OrderID: record.ID, Err: err}
	}
	if outcome == AlreadyExists {
		reconcileOutcomes.WithLabelValues("already_exists").Inc()
	}
	return outcome, nil
}

func (s *ReconciliationService) confirm(orderID, fingerprint string) {
	s.settle(orderID, RemoteConfirmed, fingerprint)
	if err := s.cache.MarkConfirmed(orderID, fingerprint); err != nil {
		// Only costs an extra existence check on the next pass
		log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to record confirmed order")
	}
}
