package acceptance

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/girish1208dev/print-service/controllers"
	"github.com/girish1208dev/print-service/middleware"
	"github.com/girish1208dev/print-service/services"
	"github.com/girish1208dev/print-service/tests/testutil"
	"github.com/stretchr/testify/suite"
)

const adminToken = "acceptance-admin-token"

// OrderAcceptanceTestSuite drives the API over real HTTP, the way the storefront and the admin page do
type OrderAcceptanceTestSuite struct {
	suite.Suite
	server *httptest.Server
	orders *services.OrderService
}

// SetupTest starts a fresh server for every test
func (suite *OrderAcceptanceTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	testutil.MustSetTestEnvironment(suite.T())

	remote := services.NewGormOrderStore(testutil.NewTestDB(suite.T()), services.NewMemoryFeed())
	cache, _ := testutil.NewTestCache(suite.T(), 50)
	reconciler := services.NewReconciliationService(cache, remote, 5*time.Second)
	suite.orders = services.NewOrderService(services.NewOrderBuilder(services.InlineEncoder{}), cache, reconciler, services.LogDispatcher{}, time.Second)
	services.SetOrderService(suite.orders)

	tokens := testutil.StubTokenValidator{
		adminToken:    testutil.MockValidatedClaims("auth0|operator", "https://test.auth0.com/", []string{middleware.AdminScope}),
		"other-token": testutil.MockValidatedClaims("auth0|customer", "https://test.auth0.com/", nil),
	}
	authorizer := middleware.NewTokenAuthorizer(tokens, middleware.AdminScope)
	services.SetAdminService(services.NewAdminService(authorizer, remote, reconciler, 5*time.Second))

	suite.server = httptest.NewServer(suite.createRouter())
}

// TearDownTest stops the server and waits for background work
func (suite *OrderAcceptanceTestSuite) TearDownTest() {
	suite.server.Close()
	suite.orders.Wait()
	services.SetOrderService(nil)
	services.SetAdminService(nil)
}

func (suite *OrderAcceptanceTestSuite) createRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", controllers.CreateOrder)
		v1.GET("/orders/current", controllers.GetCurrentOrder)

		admin := v1.Group("/admin")
		admin.GET("/orders", controllers.ListAdminOrders)
		admin.GET("/orders/stream", controllers.StreamOrders)
	}
	return router
}

func (suite *OrderAcceptanceTestSuite) submitOrder(delivery string, photos int) string {
	files := make([]testutil.UploadFile, photos)
	for i := range files {
		files[i] = testutil.UploadFile{Name: "print.jpg", Content: []byte("\xff\xd8 acceptance")}
	}
	req := testutil.NewOrderRequest(suite.T(), suite.server.URL+"/api/v1/orders", testutil.CustomerFields(delivery), files...)
	req.RequestURI = ""

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	suite.Require().Equal(http.StatusCreated, resp.StatusCode, string(body))

	var response struct {
		Data struct {
			OrderID   string `json:"orderId"`
			TotalCost int    `json:"totalCost"`
		} `json:"data"`
	}
	suite.Require().NoError(json.Unmarshal(body, &response))
	return response.Data.OrderID
}

func (suite *OrderAcceptanceTestSuite) adminRequest(ctx context.Context, path, token string) *http.Response {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, suite.server.URL+path, nil)
	suite.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	return resp
}

// TestCustomerSubmitsAndOperatorSeesOrder is the main storefront to print shop path
func (suite *OrderAcceptanceTestSuite) TestCustomerSubmitsAndOperatorSeesOrder() {
	orderID := suite.submitOrder("express", 2)
	suite.orders.Wait()

	resp := suite.adminRequest(suite.T().Context(), "/api/v1/admin/orders", adminToken)
	defer resp.Body.Close()
	suite.Equal(http.StatusOK, resp.StatusCode)

	var response struct {
		Count int `json:"count"`
		Data  []struct {
			OrderID   string `json:"orderId"`
			TotalCost int    `json:"totalCost"`
			UserInfo  struct {
				Name string `json:"name"`
			} `json:"userInfo"`
		} `json:"data"`
	}
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))
	suite.Require().Equal(1, response.Count)
	suite.Equal(orderID, response.Data[0].OrderID)
	suite.Equal(150, response.Data[0].TotalCost)
	suite.Equal("Asha", response.Data[0].UserInfo.Name)
}

// TestAdminRequiresScopedToken checks the admin list rejects missing and unscoped tokens
func (suite *OrderAcceptanceTestSuite) TestAdminRequiresScopedToken() {
	for token, want := range map[string]int{
		"":            http.StatusUnauthorized,
		"other-token": http.StatusUnauthorized,
		"forged":      http.StatusUnauthorized,
		adminToken:    http.StatusOK,
	} {
		resp := suite.adminRequest(suite.T().Context(), "/api/v1/admin/orders", token)
		resp.Body.Close()
		suite.Equal(want, resp.StatusCode, "token %q", token)
	}
}

// TestLiveStreamReceivesNewOrders keeps an admin stream open while a customer submits an order
func (suite *OrderAcceptanceTestSuite) TestLiveStreamReceivesNewOrders() {
	ctx, cancel := context.WithTimeout(suite.T().Context(), 10*time.Second)
	defer cancel()

	resp := suite.adminRequest(ctx, "/api/v1/admin/orders/stream", adminToken)
	defer resp.Body.Close()
	suite.Require().Equal(http.StatusOK, resp.StatusCode)

	orderID := suite.submitOrder("standard", 3)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var payload string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data:") {
			payload = strings.TrimPrefix(line, "data:")
			break
		}
	}
	suite.Require().NotEmpty(payload, "no event received")

	var streamed struct {
		OrderID   string `json:"orderId"`
		TotalCost int    `json:"totalCost"`
	}
	suite.Require().NoError(json.Unmarshal([]byte(payload), &streamed))
	suite.Equal(orderID, streamed.OrderID)
	suite.Equal(180, streamed.TotalCost)
}

// TestOrderAcceptanceTestSuite runs the acceptance test suite
func TestOrderAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(OrderAcceptanceTestSuite))
}
