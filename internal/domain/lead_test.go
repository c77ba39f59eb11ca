package domain_test

import (
	"testing"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestLead_Field(t *testing.T) {
	lead := &domain.Lead{
		Source:  "web",
		Status:  "new",
		Company: strPtr("Acme Freight"),
	}

	tests := []struct {
		name      string
		field     string
		wantValue string
		wantKnown bool
	}{
		{"source", "source", "web", true},
		{"status", "status", "new", true},
		{"company", "company", "Acme Freight", true},
		{"nil email reads as empty", "email", "", true},
		{"nil phone reads as empty", "phone", "", true},
		{"unknown field", "estimated_value", "", false},
		{"owner is not matchable", "owner_id", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, known := lead.Field(tc.field)
			if known != tc.wantKnown {
				t.Fatalf("known=%v, want %v", known, tc.wantKnown)
			}
			if got != tc.wantValue {
				t.Fatalf("value=%q, want %q", got, tc.wantValue)
			}
		})
	}
}

func TestLead_FullName(t *testing.T) {
	tests := []struct {
		first, last, want string
	}{
		{"Jane", "Doe", "Jane Doe"},
		{"Jane", "", "Jane"},
		{"", "Doe", "Doe"},
		{"", "", ""},
	}
	for _, tc := range tests {
		l := &domain.Lead{FirstName: tc.first, LastName: tc.last}
		if got := l.FullName(); got != tc.want {
			t.Fatalf("FullName(%q, %q) = %q, want %q", tc.first, tc.last, got, tc.want)
		}
	}
}

func TestAssignmentType_IsValid(t *testing.T) {
	for _, valid := range []domain.AssignmentType{
		domain.AssignSpecificUser, domain.AssignRoundRobin,
		domain.AssignLoadBalance, domain.AssignTerritory,
	} {
		if !valid.IsValid() {
			t.Fatalf("%s should be valid", valid)
		}
	}
	if domain.AssignmentType("random").IsValid() {
		t.Fatal("random should not be a valid assignment type")
	}
}

func TestQueueStatus_IsValid(t *testing.T) {
	for _, valid := range []domain.QueueStatus{
		domain.StatusPending, domain.StatusProcessing,
		domain.StatusAssigned, domain.StatusFailed,
	} {
		if !valid.IsValid() {
			t.Fatalf("%s should be valid", valid)
		}
	}
	if domain.QueueStatus("cancelled").IsValid() {
		t.Fatal("cancelled is not a queue status")
	}
}
