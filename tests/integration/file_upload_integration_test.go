package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/girish1208dev/print-service/controllers"
	"github.com/girish1208dev/print-service/services"
	"github.com/girish1208dev/print-service/tests/testutil"
	"github.com/girish1208dev/print-service/utils"
	"github.com/stretchr/testify/suite"
)

// FileUploadIntegrationTestSuite submits orders with disk-stored previews and fetches them back
type FileUploadIntegrationTestSuite struct {
	suite.Suite
	router    *gin.Engine
	orders    *services.OrderService
	uploadDir string
	original  string
}

// SetupTest runs before each test
func (suite *FileUploadIntegrationTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	suite.uploadDir = suite.T().TempDir()
	suite.original = utils.UploadDir
	utils.UploadDir = suite.uploadDir

	cache, _ := testutil.NewTestCache(suite.T(), 50)
	remote := services.NewMockOrderStore()
	reconciler := services.NewReconciliationService(cache, remote, time.Second)
	builder := services.NewOrderBuilder(&services.DiskEncoder{Dir: suite.uploadDir})
	suite.orders = services.NewOrderService(builder, cache, reconciler, services.NewMockDispatcher(false), time.Second)
	services.SetOrderService(suite.orders)

	suite.router = gin.New()
	suite.router.POST("/api/v1/orders", controllers.CreateOrder)
	suite.router.GET("/api/v1/uploads/:filename", controllers.GetUploadedImage)
}

// TearDownTest restores the global upload directory
func (suite *FileUploadIntegrationTestSuite) TearDownTest() {
	suite.orders.Wait()
	utils.UploadDir = suite.original
	services.SetOrderService(nil)
}

// TestDiskPreview_IsServedBack checks every preview URL of a new order resolves to the uploaded bytes
func (suite *FileUploadIntegrationTestSuite) TestDiskPreview_IsServedBack() {
	files := []testutil.UploadFile{
		{Name: "beach.png", Content: []byte("\x89PNG beach")},
		{Name: "hills.jpeg", Content: []byte("\xff\xd8 hills")},
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, testutil.NewOrderRequest(suite.T(), "/api/v1/orders", testutil.CustomerFields("standard"), files...))
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var response struct {
		Data struct {
			Photos []struct {
				Preview string `json:"preview"`
			} `json:"photos"`
		} `json:"data"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Require().Len(response.Data.Photos, 2)

	wantTypes := []string{"image/png", "image/jpeg"}
	for i, photo := range response.Data.Photos {
		suite.True(strings.HasPrefix(photo.Preview, "/api/v1/uploads/"), photo.Preview)

		w := httptest.NewRecorder()
		suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, photo.Preview, nil))
		suite.Equal(http.StatusOK, w.Code)
		suite.Equal(wantTypes[i], w.Header().Get("Content-Type"))
		suite.Equal(string(files[i].Content), w.Body.String())
	}
}

// TestOversizedPhoto_IsRejected checks the upload size limit applies to order photos
func (suite *FileUploadIntegrationTestSuite) TestOversizedPhoto_IsRejected() {
	big := make([]byte, utils.MaxFileSize+1)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, testutil.NewOrderRequest(suite.T(), "/api/v1/orders", testutil.CustomerFields("standard"),
		testutil.UploadFile{Name: "huge.png", Content: big}))

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Contains(w.Body.String(), "FILE_TOO_LARGE")
}

// TestUnknownFile_IsNotFound checks a missing preview returns 404
func (suite *FileUploadIntegrationTestSuite) TestUnknownFile_IsNotFound() {
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/missing.png", nil))
	suite.Equal(http.StatusNotFound, w.Code)
}

// TestFileUploadIntegrationTestSuite runs the test suite
func TestFileUploadIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(FileUploadIntegrationTestSuite))
}
