package controllers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bimworks/bimworks-api/config"
	"github.com/bimworks/bimworks-api/middleware"
	"github.com/bimworks/bimworks-api/models"
	"github.com/bimworks/bimworks-api/services"
)

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	ProjectTitle string  `json:"project_title" binding:"required"`
	Description  string  `json:"description" binding:"required"`
	Service      string  `json:"service" binding:"required"`
	Urgency      string  `json:"urgency"`
	Budget       *string `json:"budget"`
	PolycamLink  *string `json:"polycam_link" binding:"omitempty,url"`
}

// UpdateOrderStatusRequest represents the request body for a status change
type UpdateOrderStatusRequest struct {
	Status models.Status `json:"status" binding:"required"`
}

// UpdateOrderPricingRequest represents the request body for admin pricing
type UpdateOrderPricingRequest struct {
	Amount       *float64   `json:"amount"`
	DeliveryDate *time.Time `json:"delivery_date"`
}

// currentProfile resolves the authenticated caller's profile. On failure it
// writes the error response and returns nil.
func currentProfile(c *gin.Context) *models.Profile {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return nil
	}

	db := config.GetDB()
	var profile models.Profile
	if err := db.Where("id = ?", userID).First(&profile).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PROFILE_NOT_FOUND",
				"message": "User profile not found. Please create a profile first.",
			},
		})
		return nil
	}

	return &profile
}

// attachScanURL fills in the computed presigned URL for an order's scan file
func attachScanURL(order *models.Order) {
	if order.ScanS3Key == nil || *order.ScanS3Key == "" {
		return
	}
	s3Service := services.GetS3Service()
	if s3Service == nil {
		return
	}
	url, err := s3Service.GetPresignedURL(*order.ScanS3Key)
	if err != nil {
		log.Printf("Failed to presign scan URL for order %d: %v", order.ID, err)
		return
	}
	order.ScanURL = &url
}

// publishOrderEvent publishes a change event to the realtime feed.
// The write has already succeeded, so publish failures are only logged.
func publishOrderEvent(c *gin.Context, eventType string, order *models.Order, oldStatus *models.Status) {
	feed := services.GetFeedService()
	if feed == nil {
		return
	}
	event := services.OrderEvent{
		Type:       eventType,
		Order:      *order,
		OldStatus:  oldStatus,
		OccurredAt: time.Now().UTC(),
	}
	if err := feed.PublishOrderEvent(c.Request.Context(), event); err != nil {
		log.Printf("Failed to publish %s event for order %d: %v", eventType, order.ID, err)
	}
}

// CreateOrder handles POST /api/v1/orders - creates a new order (customers only)
func CreateOrder(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		return
	}

	// Only customers submit orders
	if profile.UserType != models.UserTypeCustomer {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only customers can create orders",
			},
		})
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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

	if !models.IsValidService(req.Service) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_SERVICE",
				"message": "Unknown service code",
			},
		})
		return
	}

	urgency := req.Urgency
	if urgency == "" {
		urgency = models.UrgencyStandard
	}
	if !models.IsValidUrgency(urgency) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_URGENCY",
				"message": "Unknown urgency level",
			},
		})
		return
	}

	order := models.Order{
		CustomerID:   profile.ID,
		ProjectTitle: req.ProjectTitle,
		Description:  req.Description,
		Service:      req.Service,
		Urgency:      urgency,
		Budget:       req.Budget,
		PolycamLink:  req.PolycamLink,
		Status:       models.StatusSubmitted,
	}

	db := config.GetDB()
	if err := db.Create(&order).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create order",
			},
		})
		return
	}

	// Load the customer relationship to return complete data
	if err := db.Preload("Customer").First(&order, order.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load order details",
			},
		})
		return
	}

	// The order is persisted. Everything past this point is best-effort and
	// must not affect the response.
	publishOrderEvent(c, services.EventOrderInserted, &order, nil)

	slackService := services.NewSlackService(config.GetConfig())
	if !slackService.SendOrderNotification(&order, profile) {
		log.Printf("Slack notification not delivered for order %s", order.OrderNumber)
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// GetOrders handles GET /api/v1/orders - lists the caller's orders, newest
// first. Admin callers see all orders.
func GetOrders(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		return
	}

	db := config.GetDB()
	query := db.Preload("Customer").Order("created_at DESC")
	if !profile.IsAdmin() {
		query = query.Where("customer_id = ?", profile.ID)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch orders",
			},
		})
		return
	}

	for i := range orders {
		attachScanURL(&orders[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// OrderStats summarizes a customer's orders. Recomputed from a fresh read on
// every call so concurrent updates are never served from a stale counter.
type OrderStats struct {
	TotalOrders     int     `json:"totalOrders"`
	Submitted       int     `json:"submitted"`
	Assigned        int     `json:"assigned"`
	InProgress      int     `json:"inProgress"`
	ForRevision     int     `json:"forRevision"`
	Delivered       int     `json:"delivered"`
	Cancelled       int     `json:"cancelled"`
	TotalAmount     float64 `json:"totalAmount"`
	CompletedAmount float64 `json:"completedAmount"`
}

// ComputeOrderStats derives the stats snapshot from a slice of orders.
// totalAmount covers active orders (submitted, in-progress, for-revision);
// completedAmount covers delivered orders; null amounts count as zero.
func ComputeOrderStats(orders []models.Order) OrderStats {
	stats := OrderStats{TotalOrders: len(orders)}
	for _, order := range orders {
		amount := 0.0
		if order.Amount != nil {
			amount = *order.Amount
		}
		switch order.Status {
		case models.StatusSubmitted:
			stats.Submitted++
			stats.TotalAmount += amount
		case models.StatusAssigned:
			stats.Assigned++
		case models.StatusInProgress:
			stats.InProgress++
			stats.TotalAmount += amount
		case models.StatusForRevision:
			stats.ForRevision++
			stats.TotalAmount += amount
		case models.StatusDelivered:
			stats.Delivered++
			stats.CompletedAmount += amount
		case models.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// GetOrderStats handles GET /api/v1/orders/stats
func GetOrderStats(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		return
	}

	db := config.GetDB()
	var orders []models.Order
	if err := db.Select("status", "amount").Where("customer_id = ?", profile.ID).Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch order statistics",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    ComputeOrderStats(orders),
	})
}

// GetOrder handles GET /api/v1/orders/:id. Ownership is part of the lookup
// predicate so a valid id belonging to another customer is indistinguishable
// from a missing one.
func GetOrder(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		return
	}

	db := config.GetDB()
	query := db.Preload("Customer").Where("id = ?", c.Param("id"))
	if !profile.IsAdmin() {
		query = query.Where("customer_id = ?", profile.ID)
	}

	var order models.Order
	if err := query.First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Order not found",
			},
		})
		return
	}

	attachScanURL(&order)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status (admins only).
// Transitions are validated against the allow-list before the write.
func UpdateOrderStatus(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		return
	}

	if !profile.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only admins can update order status",
			},
		})
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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

	if !models.IsValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_STATUS",
				"message": "Unknown order status",
			},
		})
		return
	}

	db := config.GetDB()
	var order models.Order
	if err := db.Preload("Customer").Where("id = ?", c.Param("id")).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Order not found",
			},
		})
		return
	}

	oldStatus := order.Status
	if !models.CanTransition(oldStatus, req.Status) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_STATUS_TRANSITION",
				"message": "Cannot move order from " + string(oldStatus) + " to " + string(req.Status),
			},
		})
		return
	}

	if err := db.Model(&order).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update order status",
			},
		})
		return
	}
	order.Status = req.Status

	publishOrderEvent(c, services.EventOrderUpdated, &order, &oldStatus)

	slackService := services.NewSlackService(config.GetConfig())
	if !slackService.SendOrderUpdateNotification(&order, oldStatus, req.Status) {
		log.Printf("Slack update notification not delivered for order %s", order.OrderNumber)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// UpdateOrderPricing handles PATCH /api/v1/orders/:id/pricing (admins only).
// Pricing is the only writer of amount and delivery_date.
func UpdateOrderPricing(c *gin.Context) {
	profile := currentProfile(c)
	if profile == nil {
		return
	}

	if !profile.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only admins can price orders",
			},
		})
		return
	}

	var req UpdateOrderPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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

	updates := make(map[string]interface{})
	if req.Amount != nil {
		updates["amount"] = *req.Amount
	}
	if req.DeliveryDate != nil {
		updates["delivery_date"] = *req.DeliveryDate
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Nothing to update",
			},
		})
		return
	}

	db := config.GetDB()
	var order models.Order
	if err := db.Preload("Customer").Where("id = ?", c.Param("id")).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Order not found",
			},
		})
		return
	}

	if err := db.Model(&order).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update order pricing",
			},
		})
		return
	}

	// Re-read so the response reflects the stored row
	if err := db.Preload("Customer").First(&order, order.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load order details",
			},
		})
		return
	}

	publishOrderEvent(c, services.EventOrderUpdated, &order, nil)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}
