package api

import "testing"

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	if !ValidateRunID(id) {
		t.Errorf("NewRunID() = %q does not match the run ID format", id)
	}
	if other := NewRunID(); other == id {
		t.Errorf("two run IDs are equal: %q", id)
	}
}

func TestValidateRunID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"run_0123456789abcdef0123456789abcdef", true},
		{"run_0123456789ABCDEF0123456789abcdef", false},
		{"resp_0123456789abcdef0123456789abcdef", false},
		{"run_0123", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateRunID(tt.id); got != tt.want {
			t.Errorf("ValidateRunID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
