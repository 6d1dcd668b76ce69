package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bimworks/bimworks-api/config"
	"github.com/bimworks/bimworks-api/models"
	"github.com/bimworks/bimworks-api/services"
	"github.com/bimworks/bimworks-api/utils"
)

// UploadOrderScan handles POST /api/v1/orders/:id/scan - attaches a scan
// file to an order (owner only). The file lands in S3 and only the key is
// stored on the order; responses carry a presigned URL computed on read.
func UploadOrderScan(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		return
	}

	// Ownership is part of the lookup predicate, same as GetOrder
	db := config.GetDB()
	var order models.Order
	if err := db.Where("id = ? AND customer_id = ?", c.Param("id"), profile.ID).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Order not found",
			},
		})
		return
	}

	fileHeader, err := c.FormFile("scan")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "A scan file is required in the 'scan' form field",
			},
		})
		return
	}

	if err := utils.ValidateScanFile(fileHeader); err != nil {
		var uploadErr *utils.FileUploadError
		code := "INVALID_FILE"
		if errors.As(err, &uploadErr) {
			code = uploadErr.Code
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return
	}

	s3Service := services.GetS3Service()
	if s3Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STORAGE_UNAVAILABLE",
				"message": "Scan storage is not available",
			},
		})
		return
	}

	s3Key, err := s3Service.UploadScan(order.ID, fileHeader)
	if err != nil {
		log.Printf("Failed to upload scan for order %d: %v", order.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOAD_FAILED",
				"message": "Failed to store the scan file",
			},
		})
		return
	}

	// Replacing an existing scan: clean up the old object best-effort
	oldKey := order.ScanS3Key
	if err := db.Model(&order).Update("scan_s3_key", s3Key).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to attach the scan to the order",
			},
		})
		return
	}
	if oldKey != nil && *oldKey != "" && *oldKey != s3Key {
		if err := s3Service.DeleteScan(*oldKey); err != nil {
			log.Printf("Failed to delete replaced scan %s: %v", *oldKey, err)
		}
	}

	order.ScanS3Key = &s3Key
	attachScanURL(&order)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}
