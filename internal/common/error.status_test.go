package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestNewDuplicateError(t *testing.T) {
	err := NewDuplicateError("identities", []string{"authenticators.updb.username"})

	var customErr *Error
	require.True(t, errors.As(err, &customErr), "phải là *Error")
	assert.Equal(t, StatusConflict, customErr.StatusCode)
	assert.Equal(t, ErrCodeStoreDuplicate.Code, customErr.Code.Code)

	details, ok := customErr.Details.(DuplicateDetails)
	require.True(t, ok, "Details phải là DuplicateDetails")
	assert.Equal(t, "identities", details.Collection)
	assert.Equal(t, []string{"authenticators.updb.username"}, details.Fields)
}

func TestParseDuplicateKeyError(t *testing.T) {
	t.Run("index đơn", func(t *testing.T) {
		err := fmt.Errorf(`E11000 duplicate key error collection: ziti.roles index: u_roles#name dup key: { name: "admin" }`)
		collection, fields, ok := ParseDuplicateKeyError(err)
		require.True(t, ok)
		assert.Equal(t, "roles", collection)
		assert.Equal(t, []string{"name"}, fields)
	})

	t.Run("index composite", func(t *testing.T) {
		err := fmt.Errorf(`E11000 duplicate key error collection: ziti.crypto index: u_crypto#key;iv dup key: { key: "a", iv: "b" }`)
		collection, fields, ok := ParseDuplicateKeyError(err)
		require.True(t, ok)
		assert.Equal(t, "crypto", collection)
		assert.Equal(t, []string{"key", "iv"}, fields)
	})

	t.Run("message không theo quy ước", func(t *testing.T) {
		_, _, ok := ParseDuplicateKeyError(fmt.Errorf("duplicate key error index: name_1"))
		assert.False(t, ok)
	})

	t.Run("err nil", func(t *testing.T) {
		_, _, ok := ParseDuplicateKeyError(nil)
		assert.False(t, ok)
	})
}

func TestConvertMongoError(t *testing.T) {
	t.Run("giữ nguyên lỗi taxonomy", func(t *testing.T) {
		original := NewValidationError("thiếu name", nil)
		assert.Equal(t, original, ConvertMongoError(original))
	})

	t.Run("ErrNoDocuments thành ErrNotFound", func(t *testing.T) {
		converted := ConvertMongoError(mongo.ErrNoDocuments)
		assert.True(t, errors.Is(converted, ErrNotFound))
	})

	t.Run("nil trả về nil", func(t *testing.T) {
		assert.NoError(t, ConvertMongoError(nil))
	})
}

func TestErrorIs(t *testing.T) {
	err := NewError(ErrCodeDatabaseQuery, "Không tìm thấy dữ liệu", StatusNotFound, nil)
	assert.True(t, errors.Is(err, ErrNotFound), "cùng code và message phải match errors.Is")

	other := NewError(ErrCodeDatabaseQuery, "Lỗi khác", StatusNotFound, nil)
	assert.False(t, errors.Is(other, ErrNotFound))
}
