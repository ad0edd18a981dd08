package validation_test

import (
	"testing"

	apperrors "github.com/bookclubapp/bookclub-server/internal/errors"
	"github.com/bookclubapp/bookclub-server/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
	Name     string `json:"name" validate:"required"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	req := TestRequest{
		Email:    "test@example.com",
		Password: "password123",
		Name:     "Test User",
	}

	assert.NoError(t, v.Validate(req))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       TestRequest
		wantField string
	}{
		{
			name: "missing required field",
			req: TestRequest{
				Email:    "test@example.com",
				Password: "password123",
				Name:     "",
			},
			wantField: "name",
		},
		{
			name: "invalid email",
			req: TestRequest{
				Email:    "not-an-email",
				Password: "password123",
				Name:     "Test",
			},
			wantField: "email",
		},
		{
			name: "password too short",
			req: TestRequest{
				Email:    "test@example.com",
				Password: "short",
				Name:     "Test",
			},
			wantField: "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var appErr *apperrors.Error
			require.True(t, apperrors.As(err, &appErr))
			assert.Equal(t, apperrors.CodeValidation, appErr.Code)

			fields, ok := appErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	req := TestRequest{
		Email:    "",
		Password: "password123",
		Name:     "Test",
	}

	err := v.Validate(req)
	require.Error(t, err)

	var appErr *apperrors.Error
	require.True(t, apperrors.As(err, &appErr))

	// Should use JSON tag name "email", not struct field name "Email".
	fields := appErr.Details.(map[string]string)
	assert.Contains(t, fields, "email")
	assert.NotContains(t, fields, "Email")
}
