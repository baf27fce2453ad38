package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/girish1208dev/print-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ReconciliationTestSuite struct {
	suite.Suite
	cache      *OrderCache
	remote     *MockOrderStore
	reconciler *ReconciliationService
}

func (s *ReconciliationTestSuite) SetupTest() {
	s.cache = NewOrderCache(NewMemoryStore(), 50)
	s.remote = NewMockOrderStore()
	s.reconciler = NewReconciliationService(s.cache, s.remote, time.Second)
}

func (s *ReconciliationTestSuite) submit(order models.Order) {
	s.Require().NoError(s.cache.RecordSubmission(order))
}

func (s *ReconciliationTestSuite) reconcile(trigger ReconcileTrigger) *ReconcileReport {
	report, err := s.reconciler.Reconcile(context.Background(), trigger)
	s.Require().NoError(err)
	return report
}

func (s *ReconciliationTestSuite) TestInsertsLocalOnlyOrders() {
	s.submit(newTestOrder("ORD-1", "Asha", 1, models.StandardDelivery()))
	s.submit(newTestOrder("ORD-2", "Bikash", 2, models.ExpressDelivery()))

	report := s.reconcile(TriggerAppStart)

	s.Equal(TriggerAppStart, report.Trigger)
	s.Equal(2, report.Candidates)
	s.ElementsMatch([]string{"ORD-1", "ORD-2"}, report.Inserted)
	s.Empty(report.Failures)
	s.False(report.HasConflicts())
	s.Equal(2, s.remote.Count())
	s.Equal(RemoteConfirmed, s.reconciler.State("ORD-1"))

	confirmed, err := s.cache.Confirmed()
	s.Require().NoError(err)
	s.Len(confirmed, 2)
}

func (s *ReconciliationTestSuite) TestIdempotentAcrossPasses() {
	s.submit(newTestOrder("ORD-1", "Asha", 1, models.StandardDelivery()))

	first := s.reconcile(TriggerAppStart)
	s.Equal([]string{"ORD-1"}, first.Inserted)
	insertCalls, existsCalls := s.remote.InsertCalls(), s.remote.ExistsCalls()

	for _, trigger := range []ReconcileTrigger{TriggerAdminLoad, TriggerSubmission, TriggerRefresh} {
		report := s.reconcile(trigger)
		s.Empty(report.Inserted)
		s.Equal([]string{"ORD-1"}, report.Confirmed)
	}

	s.Equal(1, s.remote.Count())
	s.Equal(insertCalls, s.remote.InsertCalls(), "confirmed orders are not re-inserted")
	s.Equal(existsCalls, s.remote.ExistsCalls(), "confirmed orders are not re-checked")
}

func (s *ReconciliationTestSuite) TestConfirmedSetSurvivesRestart() {
	s.submit(newTestOrder("ORD-1", "Asha", 1, models.StandardDelivery()))
	s.reconcile(TriggerAppStart)
	existsCalls := s.remote.ExistsCalls()

	restarted := NewReconciliationService(s.cache, s.remote, time.Second)
	report, err := restarted.Reconcile(context.Background(), TriggerAppStart)
	s.Require().NoError(err)

	s.Equal([]string{"ORD-1"}, report.Confirmed)
	s.Equal(existsCalls, s.remote.ExistsCalls())
	s.Equal(RemoteConfirmed, restarted.State("ORD-1"))
}

func (s *ReconciliationTestSuite) TestRemoteFailureRetriedOnNextPass() {
	order := newTestOrder("ORD-1", "Asha", 3, models.StandardDelivery())
	s.submit(order)
	s.remote.FailNextInserts(1)

	report := s.reconcile(TriggerSubmission)
	s.Require().Len(report.Failures, 1)
	s.Equal("ORD-1", report.Failures[0].OrderID)
	s.Equal(0, s.remote.Count())
	s.Equal(LocalOnly, s.reconciler.State("ORD-1"))

	current, err := s.cache.CurrentOrder()
	s.Require().NoError(err)
	s.Equal("ORD-1", current.ID, "the local order is untouched by a remote failure")

	report = s.reconcile(TriggerAdminLoad)
	s.Equal([]string{"ORD-1"}, report.Inserted)
	s.Empty(report.Failures)
	s.Equal(1, s.remote.Count())
	s.Equal(RemoteConfirmed, s.reconciler.State("ORD-1"))
}

func (s *ReconciliationTestSuite) TestExistsFailureIsReported() {
	s.submit(newTestOrder("ORD-1", "Asha", 1, models.StandardDelivery()))
	s.remote.FailNextExists(1)

	report := s.reconcile(TriggerRefresh)
	s.Require().Len(report.Failures, 1)
	s.Contains(report.Failures[0].Reason, "remote exists failed")
	s.Equal(0, s.remote.InsertCalls())
}

func (s *ReconciliationTestSuite) TestAlreadyRemoteOrderIsConfirmedWithoutInsert() {
	order := newTestOrder("ORD-1", "Asha", 2, models.ExpressDelivery())
	s.remote.Seed(models.NewOrderRecord(order))
	s.submit(order)

	report := s.reconcile(TriggerAppStart)

	s.Equal([]string{"ORD-1"}, report.Confirmed)
	s.Empty(report.Inserted)
	s.Equal(0, s.remote.InsertCalls())
	s.Equal(RemoteConfirmed, s.reconciler.State("ORD-1"))
}

func (s *ReconciliationTestSuite) TestAlreadyRemoteOrderWithSubMillisecondTimeIsConfirmed() {
	order := newTestOrder("ORD-1", "Asha", 1, models.StandardDelivery())
	order.CreatedAt = time.Date(2026, 3, 14, 9, 26, 53, 589_123_456, time.UTC)
	s.remote.Seed(models.NewOrderRecord(order))
	s.submit(order)

	report := s.reconcile(TriggerAppStart)

	s.False(report.HasConflicts())
	s.Equal([]string{"ORD-1"}, report.Confirmed)
	s.Equal(RemoteConfirmed, s.reconciler.State("ORD-1"))

	again := s.reconcile(TriggerRefresh)
	s.False(again.HasConflicts())
}

func (s *ReconciliationTestSuite) TestIDCollisionWithRemoteIsConflict() {
	s.remote.Seed(models.NewOrderRecord(newTestOrder("ORD-1", "Bikash", 4, models.ExpressDelivery())))
	s.submit(newTestOrder("ORD-1", "Asha", 2, models.StandardDelivery()))

	report := s.reconcile(TriggerAppStart)

	s.Require().True(report.HasConflicts())
	s.Equal("ORD-1", report.Conflicts[0].OrderID)
	s.Empty(report.Inserted)
	s.Equal(LocalOnly, s.reconciler.State("ORD-1"))

	record, err := s.remote.GetByID(context.Background(), "ORD-1")
	s.Require().NoError(err)
	s.Equal("Bikash", record.CustomerName, "the remote record is never overwritten")

	confirmed, err := s.cache.Confirmed()
	s.Require().NoError(err)
	s.NotContains(confirmed, "ORD-1")

	// The conflict is reported again on every pass until an operator resolves it
	s.True(s.reconcile(TriggerRefresh).HasConflicts())
}

func (s *ReconciliationTestSuite) TestIDCollisionInLocalCacheIsConflict() {
	older := newTestOrder("ORD-1", "Asha", 1, models.StandardDelivery())
	newer := newTestOrder("ORD-1", "Bikash", 2, models.ExpressDelivery())
	s.submit(older)
	s.submit(newer)

	report := s.reconcile(TriggerAppStart)

	s.Equal(1, report.Candidates)
	s.Require().Len(report.Conflicts, 1)
	s.Equal("ORD-1", report.Conflicts[0].OrderID)

	record, err := s.remote.GetByID(context.Background(), "ORD-1")
	s.Require().NoError(err)
	s.Equal("Bikash", record.CustomerName, "the newest local write is the one reconciled")
}

func (s *ReconciliationTestSuite) TestDuplicateHistoryEntriesReconcileOnce() {
	order := newTestOrder("ORD-1", "Asha", 1, models.StandardDelivery())
	s.submit(order)
	_, err := s.cache.FoldCurrentIntoHistory()
	s.Require().NoError(err)

	report := s.reconcile(TriggerAppStart)
	s.Equal(1, report.Candidates)
	s.False(report.HasConflicts())
	s.Equal(1, s.remote.InsertCalls())
}

func (s *ReconciliationTestSuite) TestTamperedTotalIsConflict() {
	order := newTestOrder("ORD-1", "Asha", 2, models.StandardDelivery())
	order.TotalCost = 1
	s.submit(order)

	report := s.reconcile(TriggerAppStart)
	s.Require().True(report.HasConflicts())
	s.Equal(0, s.remote.Count())
}

func (s *ReconciliationTestSuite) TestCurrentOrderMissingFromHistoryIsReconciled() {
	order := newTestOrder("ORD-orphan", "Asha", 1, models.StandardDelivery())
	data, err := json.Marshal(order)
	s.Require().NoError(err)
	s.Require().NoError(s.cache.store.Set(CurrentOrderKey, data))

	report := s.reconcile(TriggerAppStart)
	s.Equal([]string{"ORD-orphan"}, report.Inserted)
}

func (s *ReconciliationTestSuite) TestEmptyCache() {
	report := s.reconcile(TriggerAppStart)
	s.Equal(0, report.Candidates)
	s.Equal(0, s.remote.ExistsCalls())
}

func TestReconciliationTestSuite(t *testing.T) {
	suite.Run(t, new(ReconciliationTestSuite))
}

func TestReconcile_ConcurrentTriggersInsertOnce(t *testing.T) {
	cache := NewOrderCache(NewMemoryStore(), 50)
	for i := range 5 {
		require.NoError(t, cache.RecordSubmission(newTestOrder(fmt.Sprintf("ORD-%d", i), "Asha", i+1, models.StandardDelivery())))
	}
	store := NewGormOrderStore(newTestDB(t), nil)
	reconciler := NewReconciliationService(cache, store, 5*time.Second)

	const passes = 8
	triggers := []ReconcileTrigger{TriggerAppStart, TriggerAdminLoad, TriggerSubmission, TriggerRefresh}
	var wg sync.WaitGroup
	reports := make([]*ReconcileReport, passes)
	for i := range passes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := reconciler.Reconcile(context.Background(), triggers[i%len(triggers)])
			assert.NoError(t, err)
			reports[i] = report
		}()
	}
	wg.Wait()

	records, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 5)

	inserted := 0
	for _, r := range reports {
		require.NotNil(t, r)
		assert.False(t, r.HasConflicts())
		assert.Empty(t, r.Failures)
		inserted += len(r.Inserted)
	}
	assert.Equal(t, 5, inserted, "each order is inserted by exactly one pass")
}

func TestReconcile_RemoteTimeoutLeavesOrderLocal(t *testing.T) {
	cache := NewOrderCache(NewMemoryStore(), 50)
	require.NoError(t, cache.RecordSubmission(newTestOrder("ORD-1", "Asha", 1, models.StandardDelivery())))
	reconciler := NewReconciliationService(cache, blockingStore{NewMockOrderStore()}, 20*time.Millisecond)

	report, err := reconciler.Reconcile(context.Background(), TriggerRefresh)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, LocalOnly, reconciler.State("ORD-1"))
}

// blockingStore never answers existence checks before the deadline
type blockingStore struct {
	*MockOrderStore
}

func (blockingStore) ExistsByID(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestOrderState_String(t *testing.T) {
	assert.Equal(t, "local_only", LocalOnly.String())
	assert.Equal(t, "reconciling", Reconciling.String())
	assert.Equal(t, "remote_confirmed", RemoteConfirmed.String())
}
