package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		code      int
		want      ErrorType
		retryable bool
	}{
		{0, ErrorTypeNetwork, true},
		{429, ErrorTypeRateLimit, true},
		{401, ErrorTypeAuth, false},
		{403, ErrorTypeAuth, false},
		{400, ErrorTypeValidation, false},
		{500, ErrorTypeServerError, true},
		{503, ErrorTypeServerError, true},
		{200, ErrorTypeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, FromStatusCode(tt.code))
			assert.Equal(t, tt.retryable, IsRetryableStatusCode(tt.code))
		})
	}
}

func TestTypeOfWrapped(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := fmt.Errorf("append batch: %w", Wrap(ErrorTypeStorage, "write fights.json", cause))

	assert.Equal(t, ErrorTypeStorage, TypeOf(err))
	assert.True(t, Is(err, ErrorTypeStorage))
	assert.False(t, Is(nil, ErrorTypeStorage))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorTypeUnknown, TypeOf(cause))
	assert.Contains(t, err.Error(), "storage error (code 0): write fights.json: disk full")
}
