package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusAssigned    Status = "assigned"
	StatusInProgress  Status = "in-progress"
	StatusForRevision Status = "for-revision"
	StatusDelivered   Status = "delivered"
	StatusCancelled   Status = "cancelled"
)

// validNext is the status transition allow-list. Delivered and cancelled are
// terminal.
var validNext = map[Status]map[Status]bool{
	StatusSubmitted:   {StatusAssigned: true, StatusInProgress: true, StatusCancelled: true},
	StatusAssigned:    {StatusInProgress: true, StatusCancelled: true},
	StatusInProgress:  {StatusForRevision: true, StatusDelivered: true, StatusCancelled: true},
	StatusForRevision: {StatusInProgress: true, StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:   {},
	StatusCancelled:   {},
}

// IsValidStatus reports whether s is one of the known order statuses
func IsValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Service codes offered for an order
const (
	ServiceScanToBIM       = "scan-to-bim"
	ServiceBIMModeling     = "bim-modeling"
	ServiceCADDrafting     = "cad-drafting"
	Service3DVisualization = "3d-visualization"
	ServiceMEPFPModeling   = "mepfp-modeling"
	ServiceAsBuiltDrawings = "as-built-drawings"
)

var serviceNames = map[string]string{
	ServiceScanToBIM:       "Scan to BIM",
	ServiceBIMModeling:     "BIM Modeling",
	ServiceCADDrafting:     "CAD Drafting",
	Service3DVisualization: "3D Visualization",
	ServiceMEPFPModeling:   "MEPFP Modeling",
	ServiceAsBuiltDrawings: "As-Built Drawings",
}

// IsValidService reports whether the code is one of the offered services
func IsValidService(code string) bool {
	_, ok := serviceNames[code]
	return ok
}

// ServiceDisplayName returns the human-readable name for a service code.
// Unrecognized codes are returned verbatim.
func ServiceDisplayName(code string) string {
	if name, ok := serviceNames[code]; ok {
		return name
	}
	return code
}

// Urgency levels
const (
	UrgencyStandard = "standard"
	UrgencyPriority = "priority"
	UrgencyRush     = "rush"
)

// IsValidUrgency reports whether the value is a known urgency level
func IsValidUrgency(u string) bool {
	return u == UrgencyStandard || u == UrgencyPriority || u == UrgencyRush
}

// budgetDisplay maps the closed set of budget brackets to their rendered form.
var budgetDisplay = map[string]string{
	"under-1000": "Under $1000",
	"1000-2500":  "1000 - $2500",
	"2500-5000":  "2500 - $5000",
	"5000-10000": "5000 - $10000",
	"over-10000": "Over $10000",
}

// BudgetDisplay returns the human-readable form of a budget bracket.
// Unknown brackets are returned verbatim rather than guessed at.
func BudgetDisplay(bracket string) string {
	if display, ok := budgetDisplay[bracket]; ok {
		return display
	}
	return bracket
}

// Order represents a customer's project order in the system
type Order struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	OrderNumber  string         `gorm:"uniqueIndex;not null" json:"order_number"`
	CustomerID   string         `gorm:"not null;index" json:"customer_id"` // foreign key to user_profiles
	Customer     Profile        `gorm:"foreignKey:CustomerID" json:"customer"`
	ProjectTitle string         `gorm:"not null" json:"project_title"`
	Description  string         `gorm:"not null" json:"description"`
	Service      string         `gorm:"not null" json:"service"`
	Urgency      string         `gorm:"not null;default:'standard'" json:"urgency"`
	Budget       *string        `json:"budget"`       // nullable bracket string, e.g. "1000-2500"
	PolycamLink  *string        `json:"polycam_link"` // nullable URL to a shared Polycam capture
	ScanS3Key    *string        `json:"scan_s3_key"`  // nullable, S3 key of an uploaded scan file
	ScanURL      *string        `gorm:"-" json:"scan_url,omitempty"` // computed field, presigned URL for the scan
	Status       Status         `gorm:"not null;default:'submitted'" json:"status"`
	Amount       *float64       `json:"amount"`        // nullable, set by admin pricing
	DeliveryDate *time.Time     `json:"delivery_date"` // nullable, set by admin pricing
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns the human-readable order number
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderNumber == "" {
		o.OrderNumber = NewOrderNumber()
	}
	return nil
}

// NewOrderNumber generates a human-readable order number, e.g. "ORD-9F86D081"
func NewOrderNumber() string {
	id := uuid.New()
	return fmt.Sprintf("ORD-%s", strings.ToUpper(id.String()[:8]))
}
