package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/girish1208dev/print-service/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertOutcome is the result of an idempotent insert
type InsertOutcome int

const (
	Inserted InsertOutcome = iota + 1
	AlreadyExists
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// RemoteOrderStore is the durable server-side table of orders
type RemoteOrderStore interface {
	// InsertIfAbsent inserts the record unless its id is already present.
	// It is atomic with respect to the existence check.
	InsertIfAbsent(ctx context.Context, record models.OrderRecord) (InsertOutcome, error)

	ExistsByID(ctx context.Context, id string) (bool, error)

	// GetByID returns ErrOrderNotFound when the id is absent
	GetByID(ctx context.Context, id string) (models.OrderRecord, error)

	// ListAll returns every record, newest order_date first
	ListAll(ctx context.Context) ([]models.OrderRecord, error)

	// SubscribeToInserts streams newly inserted records until ctx is done
	SubscribeToInserts(ctx context.Context) (<-chan models.OrderRecord, error)
}

// GormOrderStore implements RemoteOrderStore on the orders table through gorm
type GormOrderStore struct {
	db   *gorm.DB
	feed InsertFeed
}

// NewGormOrderStore creates a store over db. Inserted records are published on feed.
func NewGormOrderStore(db *gorm.DB, feed InsertFeed) *GormOrderStore {
	if feed == nil {
		feed = NewMemoryFeed()
	}
	return &GormOrderStore{db: db, feed: feed}
}

var remoteStoreInstance RemoteOrderStore

// InitRemoteStore initializes the remote order store and migrates its table
func InitRemoteStore(db *gorm.DB, feed InsertFeed) (RemoteOrderStore, error) {
	if err := db.AutoMigrate(&models.OrderRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate orders table: %w", err)
	}
	remoteStoreInstance = NewGormOrderStore(db, feed)
	return remoteStoreInstance, nil
}

// GetRemoteStore returns the initialized remote order store
func GetRemoteStore() RemoteOrderStore {
	return remoteStoreInstance
}

// SetRemoteStore sets the remote order store instance (primarily for testing)
func SetRemoteStore(store RemoteOrderStore) {
	remoteStoreInstance = store
}

// InsertIfAbsent relies on the primary key: ON CONFLICT (id) DO NOTHING
func (s *GormOrderStore) InsertIfAbsent(ctx context.Context, record models.OrderRecord) (InsertOutcome, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "remote.InsertIfAbsent",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("order.id", record.ID)),
	)
	defer span.End()

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to insert order %s: %w", record.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return AlreadyExists, nil
	}

	if err := s.feed.Publish(ctx, record); err != nil {
		// Subscribers will still see the row through ListAll
		log.Warn().Err(err).Str("order_id", record.ID).Msg("Failed to publish insert event")
	}
	return Inserted, nil
}

// ExistsByID checks for a record with the given id
func (s *GormOrderStore) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.OrderRecord{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check order %s: %w", id, err)
	}
	return count > 0, nil
}

// GetByID loads a single record
func (s *GormOrderStore) GetByID(ctx context.Context, id string) (models.OrderRecord, error) {
	var record models.OrderRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return record, ErrOrderNotFound
	}
	if err != nil {
		return record, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	return record, nil
}

// ListAll loads all records ordered by order_date descending
func (s *GormOrderStore) ListAll(ctx context.Context) ([]models.OrderRecord, error) {
	var records []models.OrderRecord
	if err := s.db.WithContext(ctx).Order("order_date DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return records, nil
}

// SubscribeToInserts subscribes to the insert feed
func (s *GormOrderStore) SubscribeToInserts(ctx context.Context) (<-chan models.OrderRecord, error) {
	return s.feed.Subscribe(ctx)
}

// Ping checks the database connection
func (s *GormOrderStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// StoreStatus describes the remote store for the status endpoint
type StoreStatus struct {
	OrdersTable bool  `json:"ordersTable"`
	Orders      int64 `json:"orders"`
}

// StatusReporter is implemented by stores that can report their own health
type StatusReporter interface {
	Status(ctx context.Context) (StoreStatus, error)
}

// Status pings the database, then counts orders when the table exists.
// A failed ping is a RemoteFailure with Op "ping"; a failed count has Op "count".
func (s *GormOrderStore) Status(ctx context.Context) (StoreStatus, error) {
	if err := s.Ping(ctx); err != nil {
		return StoreStatus{}, &RemoteFailure{Op: "ping", Err: err}
	}

	status := StoreStatus{OrdersTable: s.db.Migrator().HasTable(&models.OrderRecord{})}
	if !status.OrdersTable {
		return status, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.OrderRecord{}).Count(&status.Orders).Error; err != nil {
		return status, &RemoteFailure{Op: "count", Err: err}
	}
	return status, nil
}
