package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/girish1208dev/print-service/middleware"
	"github.com/girish1208dev/print-service/services"
)

// ListAdminOrders handles GET /api/v1/admin/orders - every remote order, newest first
func ListAdminOrders(c *gin.Context) {
	credential, ok := adminCredential(c)
	if !ok {
		return
	}

	orders, err := services.GetAdminService().ListOrders(c.Request.Context(), credential)
	if err != nil {
		adminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
		"count":   len(orders),
	})
}

// PrintOrder handles GET /api/v1/admin/orders/:id/print - printable HTML sheet of one order
func PrintOrder(c *gin.Context) {
	credential, ok := adminCredential(c)
	if !ok {
		return
	}

	html, err := services.GetAdminService().Reprint(c.Request.Context(), credential, c.Param("id"))
	if err != nil {
		adminError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// StreamOrders handles GET /api/v1/admin/orders/stream - server-sent events of new orders
func StreamOrders(c *gin.Context) {
	credential, ok := adminCredential(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	orders, err := services.GetAdminService().Subscribe(ctx, credential)
	if err != nil {
		adminError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case order, open := <-orders:
			if !open {
				return
			}
			c.SSEvent("order", order)
			c.Writer.Flush()
		}
	}
}

// ReconcileOrders handles POST /api/v1/admin/reconcile - explicit refresh
func ReconcileOrders(c *gin.Context) {
	credential, ok := adminCredential(c)
	if !ok {
		return
	}

	report, err := services.GetAdminService().Reconcile(c.Request.Context(), credential)
	if err != nil {
		adminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}

func adminCredential(c *gin.Context) (string, bool) {
	credential, err := middleware.AdminCredential(c)
	if err != nil {
		var authErr *middleware.AuthError
		code := "UNAUTHORIZED"
		if errors.As(err, &authErr) {
			code = authErr.Code
		}
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return "", false
	}
	return credential, true
}

func adminError(c *gin.Context, err error) {
	var remoteErr *services.RemoteFailure
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Admin access denied",
			},
		})
	case errors.Is(err, services.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Order not found",
			},
		})
	case errors.As(err, &remoteErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Order store is unavailable",
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to process admin request",
			},
		})
	}
}
