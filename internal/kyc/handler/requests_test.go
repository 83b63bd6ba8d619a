package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycdesk/pkg/domain-errors"
)

func TestGenerateOTPRequestValidate(t *testing.T) {
	t.Run("trims and keeps flags", func(t *testing.T) {
		req := &GenerateOTPRequest{ClientName: " Ada ", FolderLink: " link ", DOB: true}
		require.NoError(t, req.Validate())
		assert.Equal(t, "Ada", req.ClientName)
		assert.Equal(t, "link", req.FolderLink)
		assert.True(t, req.Flags().DOB)
	})

	t.Run("overlong name reports the json field", func(t *testing.T) {
		req := &GenerateOTPRequest{ClientName: strings.Repeat("a", 201)}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "clientName")
	})
}

func TestPersonalInfoRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  PersonalInfoRequest
		ok   bool
	}{
		{"complete", PersonalInfoRequest{DOB: "1990-01-01", PhoneNo: "0800"}, true},
		{"missing dob", PersonalInfoRequest{PhoneNo: "0800"}, false},
		{"blank phone", PersonalInfoRequest{DOB: "1990-01-01", PhoneNo: "  "}, false},
		{"bad otp id", PersonalInfoRequest{OTPID: "123", DOB: "1990-01-01", PhoneNo: "0800"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		})
	}
}
