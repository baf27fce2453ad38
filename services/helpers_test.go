package services

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/girish1208dev/print-service/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.OrderRecord{}))
	return db
}

func newTestCache(t *testing.T) *OrderCache {
	t.Helper()

	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewOrderCache(store, 200)
}

func newTestOrder(id, name string, photoCount int, delivery models.DeliveryOption) models.Order {
	photos := make([]models.PhotoRef, photoCount)
	for i := range photos {
		photos[i] = models.PhotoRef{
			ID:      fmt.Sprintf("%s-p%d", id, i),
			Preview: fmt.Sprintf("https://previews.test/%s/%d", id, i),
		}
	}
	return models.Order{
		ID:     id,
		Photos: photos,
		Customer: models.CustomerInfo{
			Name:     name,
			Phone:    "9800000000",
			Location: "Lakeside, Pokhara",
		},
		Delivery:  delivery,
		TotalCost: CalculateTotal(photoCount, delivery),
		CreatedAt: testNow,
	}
}

func newTestPhotos(n int) []models.Photo {
	photos := make([]models.Photo, n)
	for i := range photos {
		photos[i] = models.Photo{
			ID:          fmt.Sprintf("photo-%d", i),
			FileName:    fmt.Sprintf("photo-%d.png", i),
			ContentType: "image/png",
			Content:     []byte(fmt.Sprintf("png bytes %d", i)),
			Preview:     "blob:http://localhost/" + fmt.Sprint(i),
		}
	}
	return photos
}

func validCustomer() models.CustomerInfo {
	return models.CustomerInfo{Name: "Asha", Phone: "9800000000", Location: "Lakeside, Pokhara"}
}
