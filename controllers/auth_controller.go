package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"github.com/bimworks/bimworks-api/config"
	"github.com/bimworks/bimworks-api/models"
	"github.com/bimworks/bimworks-api/services"
)

// SignupRequest represents the request body for account registration
type SignupRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
	UserType  string `json:"user_type"`
}

// LoginRequest represents the request body for login. The role is the portal
// the user picked at the login screen and is cross-checked against the stored
// profile.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=customer admin"`
}

// Signup handles POST /api/v1/auth/signup - registers an account at the
// identity provider and upserts the matching profile
func Signup(c *gin.Context) {
	var req SignupRequest
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

	userType := req.UserType
	if userType == "" {
		userType = models.UserTypeCustomer
	}
	if userType != models.UserTypeCustomer && userType != models.UserTypeAdmin {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "user_type must be customer or admin",
			},
		})
		return
	}

	identity := services.NewIdentityService(config.GetConfig())

	metadata := map[string]string{
		"first_name": req.FirstName,
		"last_name":  req.LastName,
	}
	if _, err := identity.SignUp(req.Email, req.Password, metadata); err != nil {
		// Provider rejections (duplicate email, weak password) pass through
		// with the provider's own message
		var providerErr *services.ProviderError
		if errors.As(err, &providerErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "SIGNUP_REJECTED",
					"message": providerErr.Message,
				},
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "IDENTITY_PROVIDER_ERROR",
				"message": "Failed to reach the identity provider",
			},
		})
		return
	}

	// Sign in immediately to learn the provider subject for the profile key
	token, err := identity.SignIn(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "IDENTITY_PROVIDER_ERROR",
				"message": "Account created but sign-in failed. Please log in.",
			},
		})
		return
	}

	userInfo, err := identity.GetUserInfo(token.AccessToken)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "IDENTITY_PROVIDER_ERROR",
				"message": "Failed to fetch account information from the identity provider",
			},
		})
		return
	}

	profile := models.Profile{
		ID:        userInfo.Sub,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		UserType:  userType,
		IsActive:  true,
	}

	// Upsert keyed on the provider subject so retried signups stay idempotent
	db := config.GetDB()
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&profile).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create user profile",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"access_token": token.AccessToken,
			"profile":      profile,
		},
	})
}

// Login handles POST /api/v1/auth/login - validates credentials at the
// provider, then cross-checks the stored profile's role and active flag
func Login(c *gin.Context) {
	var req LoginRequest
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

	identity := services.NewIdentityService(config.GetConfig())

	token, err := identity.SignIn(req.Email, req.Password)
	if err != nil {
		var providerErr *services.ProviderError
		if errors.As(err, &providerErr) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_CREDENTIALS",
					"message": providerErr.Message,
				},
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "IDENTITY_PROVIDER_ERROR",
				"message": "Failed to reach the identity provider",
			},
		})
		return
	}

	userInfo, err := identity.GetUserInfo(token.AccessToken)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "IDENTITY_PROVIDER_ERROR",
				"message": "Failed to fetch account information from the identity provider",
			},
		})
		return
	}

	db := config.GetDB()
	var profile models.Profile
	if err := db.Where("id = ?", userInfo.Sub).First(&profile).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PROFILE_NOT_FOUND",
				"message": "No profile exists for this account. Please sign up first.",
			},
		})
		return
	}

	if profile.UserType != req.Role {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ROLE_MISMATCH",
				"message": "This account is registered as a " + profile.UserType + ". Please use the " + profile.UserType + " login.",
			},
		})
		return
	}

	if !profile.IsActive {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ACCOUNT_DISABLED",
				"message": "This account has been deactivated. Please contact support.",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"access_token": token.AccessToken,
			"profile":      profile,
		},
	})
}

// Logout handles POST /api/v1/auth/logout. Sessions live at the identity
// provider, so this is a stateless acknowledgment for the client.
func Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out",
	})
}
