package apierrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSetsHTTPStatusByCategory(t *testing.T) {
	err := New(nil, Validation, "create_shipment", "bad input", nil)
	assert.Equal(t, 400, err.HTTPStatus)
	assert.Equal(t, Validation, err.Category)
	assert.NotEmpty(t, err.ID)
}

func TestNewWrapsCause(t *testing.T) {
	cause := assert.AnError
	err := New(nil, Database, "get_shipment", "query failed", cause)
	assert.Equal(t, cause, err.Unwrap())
	assert.Contains(t, err.Error(), "DATABASE_ERROR")
}

func TestBodyOmitsCause(t *testing.T) {
	err := New(nil, NotFound, "get_shipment", "not found", assert.AnError)
	body := err.Body()
	assert.Equal(t, "not found", body["message"])
	assert.Equal(t, NotFound, body["error_type"])
	assert.NotContains(t, body, "cause")
}
