package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/girish1208dev/print-service/models"
	"github.com/girish1208dev/print-service/services"
	"github.com/girish1208dev/print-service/utils"
	"github.com/google/uuid"
)

// CreateOrder handles POST /api/v1/orders - submits a photo print order.
// Expects multipart form fields photos (files), name, phone, location and delivery.
func CreateOrder(c *gin.Context) {
	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		files = append(form.File["photos"], form.File["photos[]"]...)
	} else if !errors.Is(err, http.ErrNotMultipart) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid multipart form",
				"details": err.Error(),
			},
		})
		return
	}

	photos := make([]models.Photo, 0, len(files))
	for _, fileHeader := range files {
		content, contentType, err := utils.ReadUploadedFile(fileHeader)
		if err != nil {
			var uploadErr *utils.FileUploadError
			if errors.As(err, &uploadErr) {
				c.JSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error": gin.H{
						"code":    uploadErr.Code,
						"message": uploadErr.Message,
						"details": fileHeader.Filename,
					},
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UPLOAD_ERROR",
					"message": "Failed to read uploaded photo",
				},
			})
			return
		}

		photos = append(photos, models.Photo{
			ID:          uuid.NewString(),
			FileName:    fileHeader.Filename,
			ContentType: contentType,
			Content:     content,
		})
	}

	delivery, err := models.ParseDeliveryOption(c.PostForm("delivery"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid delivery option",
				"details": err.Error(),
			},
		})
		return
	}

	customer := models.CustomerInfo{
		Name:     c.PostForm("name"),
		Phone:    c.PostForm("phone"),
		Location: c.PostForm("location"),
	}

	order, err := services.GetOrderService().SubmitOrder(c.Request.Context(), photos, customer, delivery)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": validationErr.Error(),
					"details": validationErr.Fields,
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_SAVED",
				"message": "Failed to save order",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// GetCurrentOrder handles GET /api/v1/orders/current - the most recently submitted order
func GetCurrentOrder(c *gin.Context) {
	order, err := services.GetOrderService().CurrentOrder()
	if err != nil {
		localCacheError(c)
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "No order has been submitted yet",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// GetOrderHistory handles GET /api/v1/orders/history - previously submitted orders, newest first
func GetOrderHistory(c *gin.Context) {
	orders, err := services.GetOrderService().History()
	if err != nil {
		localCacheError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
		"count":   len(orders),
	})
}

// GetCustomerInfo handles GET /api/v1/customer-info - the saved customer info draft
func GetCustomerInfo(c *gin.Context) {
	info, err := services.GetOrderService().LoadCustomerDraft()
	if err != nil {
		localCacheError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    info,
	})
}

// UpdateCustomerInfo handles PUT /api/v1/customer-info - saves the customer info draft
func UpdateCustomerInfo(c *gin.Context) {
	var info models.CustomerInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	if err := services.GetOrderService().SaveCustomerDraft(info); err != nil {
		localCacheError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    info,
	})
}

func localCacheError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "LOCAL_CACHE_ERROR",
			"message": "Failed to access local order cache",
		},
	})
}
