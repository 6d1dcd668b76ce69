package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"submitted to assigned", StatusSubmitted, StatusAssigned, true},
		{"submitted to in-progress", StatusSubmitted, StatusInProgress, true},
		{"submitted to cancelled", StatusSubmitted, StatusCancelled, true},
		{"submitted to delivered", StatusSubmitted, StatusDelivered, false},
		{"assigned to in-progress", StatusAssigned, StatusInProgress, true},
		{"assigned to cancelled", StatusAssigned, StatusCancelled, true},
		{"assigned to delivered", StatusAssigned, StatusDelivered, false},
		{"in-progress to for-revision", StatusInProgress, StatusForRevision, true},
		{"in-progress to delivered", StatusInProgress, StatusDelivered, true},
		{"in-progress to cancelled", StatusInProgress, StatusCancelled, true},
		{"in-progress to submitted", StatusInProgress, StatusSubmitted, false},
		{"for-revision to in-progress", StatusForRevision, StatusInProgress, true},
		{"for-revision to delivered", StatusForRevision, StatusDelivered, true},
		{"delivered is terminal", StatusDelivered, StatusSubmitted, false},
		{"delivered cannot cancel", StatusDelivered, StatusCancelled, false},
		{"cancelled is terminal", StatusCancelled, StatusSubmitted, false},
		{"cancelled cannot deliver", StatusCancelled, StatusDelivered, false},
		{"no self transition", StatusSubmitted, StatusSubmitted, false},
		{"unknown source", Status("bogus"), StatusSubmitted, false},
		{"unknown target", StatusSubmitted, Status("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range []Status{StatusSubmitted, StatusAssigned, StatusInProgress, StatusForRevision, StatusDelivered, StatusCancelled} {
		assert.True(t, IsValidStatus(s), "expected %s to be valid", s)
	}
	assert.False(t, IsValidStatus(Status("shipped")))
	assert.False(t, IsValidStatus(Status("")))
}

func TestIsValidService(t *testing.T) {
	for _, code := range []string{
		ServiceScanToBIM, ServiceBIMModeling, ServiceCADDrafting,
		Service3DVisualization, ServiceMEPFPModeling, ServiceAsBuiltDrawings,
	} {
		assert.True(t, IsValidService(code), "expected %s to be valid", code)
	}
	assert.False(t, IsValidService("laser-scanning"))
	assert.False(t, IsValidService(""))
}

func TestServiceDisplayName(t *testing.T) {
	assert.Equal(t, "Scan to BIM", ServiceDisplayName(ServiceScanToBIM))
	assert.Equal(t, "MEPFP Modeling", ServiceDisplayName(ServiceMEPFPModeling))

	// Unrecognized codes come back verbatim
	assert.Equal(t, "point-cloud-cleanup", ServiceDisplayName("point-cloud-cleanup"))
}

func TestIsValidUrgency(t *testing.T) {
	assert.True(t, IsValidUrgency(UrgencyStandard))
	assert.True(t, IsValidUrgency(UrgencyPriority))
	assert.True(t, IsValidUrgency(UrgencyRush))
	assert.False(t, IsValidUrgency("immediate"))
	assert.False(t, IsValidUrgency(""))
}

func TestBudgetDisplay(t *testing.T) {
	tests := []struct {
		bracket  string
		expected string
	}{
		{"under-1000", "Under $1000"},
		{"1000-2500", "1000 - $2500"},
		{"2500-5000", "2500 - $5000"},
		{"5000-10000", "5000 - $10000"},
		{"over-10000", "Over $10000"},
		// Unknown brackets render verbatim instead of being mangled
		{"500-750", "500-750"},
		{"negotiable", "negotiable"},
	}

	for _, tt := range tests {
		t.Run(tt.bracket, func(t *testing.T) {
			assert.Equal(t, tt.expected, BudgetDisplay(tt.bracket))
		})
	}
}

func TestNewOrderNumber(t *testing.T) {
	number := NewOrderNumber()
	assert.True(t, strings.HasPrefix(number, "ORD-"))
	assert.Len(t, number, len("ORD-")+8)
	assert.Equal(t, strings.ToUpper(number), number)

	// Consecutive numbers must differ
	assert.NotEqual(t, number, NewOrderNumber())
}
