package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	UserID   string `validate:"required"`
	ToolType string `validate:"required,oneof=carousel ai_generation video_download ebook"`
	Amount   int    `validate:"gte=0"`
}

func TestValidateStructValid(t *testing.T) {
	err := ValidateStruct(samplePayload{
		UserID:   "user-1",
		ToolType: "carousel",
		Amount:   3,
	})
	assert.NoError(t, err)
}

func TestValidateStructFieldMessages(t *testing.T) {
	err := ValidateStruct(samplePayload{
		ToolType: "teleport",
		Amount:   -1,
	})
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	fields := GetValidationFields(err)
	assert.Equal(t, "this field is required", fields["userID"])
	assert.Contains(t, fields["toolType"], "must be one of")
	assert.Contains(t, fields["amount"], "at least 0")
}

func TestIsValidationErrorOther(t *testing.T) {
	assert.False(t, IsValidationError(assert.AnError))
	assert.Nil(t, GetValidationFields(assert.AnError))
}
