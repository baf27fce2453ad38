package testutil

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/girish1208dev/print-service/models"
	"github.com/girish1208dev/print-service/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MustSetTestEnvironment sets GO_ENV to test and fails if it cannot be set.
// Use this in TestMain or suite setup functions.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}
	if os.Getenv("GO_ENV") != "test" {
		t.Fatal("Failed to verify GO_ENV=test")
	}
}

// NewTestDB opens an in-memory sqlite database with the orders table migrated.
// A single connection keeps every query on the same in-memory database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get test database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.OrderRecord{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// NewTestCache opens a bolt-backed order cache in a temp directory
func NewTestCache(t *testing.T, historyLimit int) (*services.OrderCache, *services.BoltStore) {
	t.Helper()

	store, err := services.OpenBoltStore(filepath.Join(t.TempDir(), "local-cache.db"))
	if err != nil {
		t.Fatalf("Failed to open test cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return services.NewOrderCache(store, historyLimit), store
}

// NewOrder builds a valid order with n photos
func NewOrder(id, name string, photoCount int, delivery models.DeliveryOption, createdAt time.Time) models.Order {
	photos := make([]models.PhotoRef, photoCount)
	for i := range photos {
		photos[i] = models.PhotoRef{
			ID:       fmt.Sprintf("%s-photo-%d", id, i),
			FileName: fmt.Sprintf("photo-%d.png", i),
			Preview:  fmt.Sprintf("https://previews.test/%s/%d", id, i),
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
		TotalCost: photoCount*models.PhotoUnitPrice + delivery.Fee(),
		CreatedAt: createdAt.UTC().Truncate(time.Millisecond),
	}
}

// NewPhotos returns n photos with in-memory content and transient previews
func NewPhotos(n int) []models.Photo {
	photos := make([]models.Photo, n)
	for i := range photos {
		photos[i] = models.Photo{
			ID:          fmt.Sprintf("photo-%d", i),
			FileName:    fmt.Sprintf("photo-%d.png", i),
			ContentType: "image/png",
			Content:     []byte(fmt.Sprintf("png bytes %d", i)),
			Preview:     models.TransientPreviewPrefix + fmt.Sprintf("http://localhost/%d", i),
		}
	}
	return photos
}

// UploadFile is one file part of a multipart order submission
type UploadFile struct {
	Name    string
	Content []byte
}

// NewOrderRequest builds a multipart POST with the given form fields and photo files
func NewOrderRequest(t *testing.T, target string, fields map[string]string, files ...UploadFile) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("Failed to write form field %s: %v", name, err)
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile("photos", file.Name)
		if err != nil {
			t.Fatalf("Failed to create form file %s: %v", file.Name, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			t.Fatalf("Failed to write form file %s: %v", file.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// CustomerFields returns valid customer form fields for an order submission
func CustomerFields(delivery string) map[string]string {
	return map[string]string{
		"name":     "Asha",
		"phone":    "9800000000",
		"location": "Lakeside, Pokhara",
		"delivery": delivery,
	}
}
