// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerDeviceRequest struct {
	UserID    string `validate:"required"`
	PushToken string `validate:"required,min=10"`
	Platform  string `validate:"omitempty,oneof=ios android"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(&registerDeviceRequest{
		UserID:    "u1",
		PushToken: "ExponentPushToken[abc]",
		Platform:  "ios",
	})
	assert.Nil(t, err)
}

func TestValidateStructSingleFailure(t *testing.T) {
	err := ValidateStruct(&registerDeviceRequest{
		PushToken: "ExponentPushToken[abc]",
	})
	require.NotNil(t, err)

	apiErr := err.ToAPIError()
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, "UserID is required", apiErr.Message)
	assert.Equal(t, "UserID", apiErr.Details["field"])
}

func TestValidateStructMultipleFailures(t *testing.T) {
	err := ValidateStruct(&registerDeviceRequest{
		PushToken: "short",
		Platform:  "windows",
	})
	require.NotNil(t, err)
	require.Len(t, err.Fields(), 3)

	apiErr := err.ToAPIError()
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Contains(t, apiErr.Message, "UserID is required")
	assert.Contains(t, apiErr.Message, "PushToken must be at least 10 characters")
	assert.Contains(t, apiErr.Message, "Platform must be one of: ios android")
	assert.NotNil(t, apiErr.Details["fields"])
}

func TestGetValidatorIsSingleton(t *testing.T) {
	assert.Same(t, GetValidator(), GetValidator())
}
