package certificate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusDraft, StatusIssued, true},
		{StatusIssued, StatusRevoked, true},
		{StatusDraft, StatusRevoked, false},
		{StatusIssued, StatusDraft, false},
		{StatusRevoked, StatusIssued, false},
		{StatusRevoked, StatusDraft, false},
	}
	for _, tc := range tests {
		t.Run(tc.from+"->"+tc.to, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}
