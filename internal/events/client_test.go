package events

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{40, 30 * time.Second}, // shift overflow still capped
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"connection closed", errors.New("connection closed"), true},
		{"unexpected EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"handler failure", errors.New("sheet append failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isConnectionError(tt.err))
		})
	}
}

func TestExportMessageRoundTrip(t *testing.T) {
	msg := NewExportMessage("expense", 42)

	body, err := msg.ToJSON()
	require.NoError(t, err)

	decoded, err := ExportMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, "expense", decoded.Kind)
	assert.Equal(t, int64(42), decoded.ID)
	assert.WithinDuration(t, msg.Timestamp, decoded.Timestamp, time.Second)
}

func TestExportMessageFromJSONInvalid(t *testing.T) {
	_, err := ExportMessageFromJSON([]byte("{not json"))
	assert.Error(t, err)
}
