package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/mechastore/mecha-backend/pkg/errors"
)

type addItemBody struct {
	Kind     string `json:"kind" validate:"required,oneof=PRODUCT SERVICE"`
	RefID    string `json:"refId" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

func TestDecodeJSONBodyValid(t *testing.T) {
	body := `{"kind":"PRODUCT","refId":"7b0f4d4e-9a6b-4f2c-8d3e-1f2a3b4c5d6e","quantity":3}`
	r := httptest.NewRequest("POST", "/cart/items", strings.NewReader(body))

	var dest addItemBody
	require.NoError(t, DecodeJSONBody(r, &dest))
	assert.Equal(t, 3, dest.Quantity)
}

func TestDecodeJSONBodyUnknownField(t *testing.T) {
	body := `{"kind":"PRODUCT","refId":"7b0f4d4e-9a6b-4f2c-8d3e-1f2a3b4c5d6e","quantity":3,"extra":true}`
	r := httptest.NewRequest("POST", "/cart/items", strings.NewReader(body))

	var dest addItemBody
	err := DecodeJSONBody(r, &dest)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestDecodeJSONBodyValidationDetails(t *testing.T) {
	body := `{"kind":"CRATE","refId":"not-a-uuid","quantity":0}`
	r := httptest.NewRequest("POST", "/cart/items", strings.NewReader(body))

	var dest addItemBody
	err := DecodeJSONBody(r, &dest)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "kind")
	assert.Contains(t, details, "refId")
	assert.Contains(t, details, "quantity")
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/orders?limit=25", nil)
	value, err := ParseQueryInt(r, "limit", 50, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, value)

	r = httptest.NewRequest("GET", "/orders", nil)
	value, err = ParseQueryInt(r, "limit", 50, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 50, value)

	r = httptest.NewRequest("GET", "/orders?limit=9000", nil)
	_, err = ParseQueryInt(r, "limit", 50, 1, 100)
	require.Error(t, err)

	r = httptest.NewRequest("GET", "/orders?limit=abc", nil)
	_, err = ParseQueryInt(r, "limit", 50, 1, 100)
	require.Error(t, err)
}

func TestParsePathUUID(t *testing.T) {
	id, err := ParsePathUUID("7b0f4d4e-9a6b-4f2c-8d3e-1f2a3b4c5d6e", "orderId")
	require.NoError(t, err)
	assert.Equal(t, "7b0f4d4e-9a6b-4f2c-8d3e-1f2a3b4c5d6e", id.String())

	_, err = ParsePathUUID("nope", "orderId")
	require.Error(t, err)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 0))
	assert.Equal(t, "hel", SanitizeString("hello", 3))
}
