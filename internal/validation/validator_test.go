package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodgram/internal/core"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type pageRequest struct {
	Page  int `json:"page" validate:"gte=1"`
	Limit int `json:"limit" validate:"min=1,max=100"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(&loginRequest{Email: "a@b.io", Password: "x"}))
}

func TestStruct_FieldMessages(t *testing.T) {
	err := Struct(&loginRequest{Email: "nope"})
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"Enter a valid email address."}, ve.Fields["email"])
	assert.Equal(t, []string{"This field is required."}, ve.Fields["password"])
}

func TestStruct_Bounds(t *testing.T) {
	err := Struct(&pageRequest{Page: 0, Limit: 500})
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"Ensure this value is greater than or equal to 1."}, ve.Fields["page"])
	assert.Equal(t, []string{"Ensure this value is less than or equal to 100."}, ve.Fields["limit"])
}
