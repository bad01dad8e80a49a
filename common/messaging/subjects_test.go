package messaging

import "testing"

func TestOutcomeSubject(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"created", "leadrelay.outcomes.created"},
		{"transient_failure", "leadrelay.outcomes.transient_failure"},
		{"auth_rejected", "leadrelay.outcomes.auth_rejected"},
	}

	for _, tt := range tests {
		if got := OutcomeSubject(tt.tag); got != tt.want {
			t.Errorf("OutcomeSubject(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}
