package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskFreeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"telegram bot token",
			"request to https://api.telegram.org/bot123456789:AAHdqTcvbkdf38hfk29fj29fkj29dkf29/sendMessage failed",
			"request to https://api.telegram.org/***MASKED***/sendMessage failed",
		},
		{
			"sk-style api key",
			"auth failed for sk-ant-REDACTED",
			"auth failed for ***MASKED***",
		},
		{
			"google api key",
			"key AIzaSyA1234567890abcdefghijklmnopqrstu rejected",
			"key ***MASKED*** rejected",
		},
		{
			"bearer header",
			"Authorization: Bearer eyJhbGciOi.payload",
			"Authorization: ***MASKED***",
		},
		{
			"plain text untouched",
			"contact sync finished for anna@example.org",
			"contact sync finished for anna@example.org",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Mask(tc.input))
		})
	}
}

func TestMaskMap(t *testing.T) {
	in := map[string]any{
		"count":    3,
		"provider": "google",
		"credentials": map[string]any{
			"client_secret": "super-secret",
			"refresh_token": "1//abc",
			"client_id":     "plain.apps.googleusercontent.com",
		},
		"App_Password": "abcd efgh",
	}

	out := MaskMap(in)

	assert.Equal(t, 3, out["count"])
	assert.Equal(t, "google", out["provider"])
	assert.Equal(t, "***MASKED***", out["App_Password"])
	creds := out["credentials"].(map[string]any)
	assert.Equal(t, "***MASKED***", creds["client_secret"])
	assert.Equal(t, "***MASKED***", creds["refresh_token"])
	assert.Equal(t, "plain.apps.googleusercontent.com", creds["client_id"])

	// Input stays untouched.
	assert.Equal(t, "super-secret", in["credentials"].(map[string]any)["client_secret"])
}

func TestMaskMapNil(t *testing.T) {
	assert.Nil(t, MaskMap(nil))
}
