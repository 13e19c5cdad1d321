package dedupe

import (
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected float64
		wantErr  bool
	}{
		{"empty falls back to configured default", "", 0, false},
		{"valid threshold", "0.9", 0.9, false},
		{"upper bound inclusive", "1", 1.0, false},
		{"zero is rejected", "0", 0, true},
		{"negative is rejected", "-0.5", 0, true},
		{"above one is rejected", "1.5", 0, true},
		{"not a number", "high", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			threshold, err := parseThreshold(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, threshold)
		})
	}
}
