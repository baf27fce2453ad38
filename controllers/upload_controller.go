package controllers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/girish1208dev/print-service/utils"
)

// GetUploadedImage handles GET /api/v1/uploads/:filename - serves previews stored by the disk encoder
func GetUploadedImage(c *gin.Context) {
	path, contentType, err := utils.ResolveUploadPath(c.Param("filename"))
	if err != nil {
		var uploadErr *utils.FileUploadError
		if !errors.As(err, &uploadErr) {
			uploadErr = &utils.FileUploadError{Code: "INVALID_REQUEST", Message: err.Error()}
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    uploadErr.Code,
				"message": uploadErr.Message,
			},
		})
		return
	}

	if info, err := os.Stat(path); err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_NOT_FOUND",
				"message": "Image not found",
			},
		})
		return
	}

	c.Header("Content-Type", contentType)
	// previews are immutable once an order is built
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(path)
}
