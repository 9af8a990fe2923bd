package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Message string `json:"message" validate:"required"`
	TopK    int    `json:"top_k" validate:"gte=0,lte=100"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct passes", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{Message: "hello", TopK: 3})
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{TopK: 3})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "Message")
		assert.Equal(t, "Message is required", fields["Message"])
	})

	t.Run("range violation", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{Message: "hello", TopK: 500})
		require.Error(t, err)
		fields := GetValidationFields(err)
		assert.Contains(t, fields, "TopK")
	})
}

func TestIsValidationErrorOtherError(t *testing.T) {
	assert.False(t, IsValidationError(assert.AnError))
	assert.Nil(t, GetValidationFields(assert.AnError))
}
