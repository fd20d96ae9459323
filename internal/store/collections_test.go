package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfoundry/ziti-console/internal/global"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	db := NewMemoryDatabase()
	stores := NewStores(func(collection string) Engine {
		return NewMemoryEngine(db, collection)
	})
	require.NoError(t, stores.InitializeAll(context.Background()))
	return stores
}

func TestNewStoresCascade(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	role, err := stores.Roles.InsertOne(ctx, Document{"name": "admin"})
	require.NoError(t, err)
	roleID := role["id"].(string)

	identity, err := stores.Identities.InsertOne(ctx, Document{
		"name":  "alice",
		"roles": []any{roleID, "other-role"},
	})
	require.NoError(t, err)

	t.Run("xóa role thì gỡ id khỏi mọi identity", func(t *testing.T) {
		_, err := stores.Roles.RemoveByID(ctx, roleID)
		require.NoError(t, err)

		doc, err := stores.Identities.FindByID(ctx, identity["id"].(string))
		require.NoError(t, err)
		assert.Equal(t, []any{"other-role"}, toSlice(doc["roles"]))
	})
}

func TestStoresMap(t *testing.T) {
	stores := newTestStores(t)
	m := stores.Map()

	assert.Len(t, m, 6)
	for name, s := range m {
		assert.Equal(t, name, s.CollectionName())
	}
	assert.Same(t, stores.Sessions.BaseStore, m[global.Collections.Sessions])
}

func TestCollectionValidators(t *testing.T) {
	ctx := context.Background()
	global.InitValidator()
	stores := newTestStores(t)

	t.Run("identity thiếu name bị từ chối", func(t *testing.T) {
		_, err := stores.Identities.InsertOne(ctx, Document{"type": "device"})
		assert.Error(t, err)
	})

	t.Run("role thiếu name bị từ chối", func(t *testing.T) {
		_, err := stores.Roles.InsertOne(ctx, Document{})
		assert.Error(t, err)
	})

	t.Run("enrollment với email sai định dạng bị từ chối", func(t *testing.T) {
		_, err := stores.Enrollments.InsertOne(ctx, Document{"email": "not-an-email"})
		assert.Error(t, err)
	})

	t.Run("enrollment với email hợp lệ được ghi", func(t *testing.T) {
		_, err := stores.Enrollments.InsertOne(ctx, Document{"email": "user@example.com"})
		assert.NoError(t, err)
	})

	t.Run("crypto thiếu key hoặc iv bị từ chối", func(t *testing.T) {
		_, err := stores.Crypto.InsertOne(ctx, Document{"key": "k"})
		assert.Error(t, err)
	})
}

func TestCollectionUniqueness(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)

	t.Run("username updb không được trùng", func(t *testing.T) {
		_, err := stores.Identities.InsertOne(ctx, Document{
			"name": "alice",
			"authenticators": Document{"updb": Document{"username": "alice"}},
		})
		require.NoError(t, err)

		_, err = stores.Identities.InsertOne(ctx, Document{
			"name": "alice-2",
			"authenticators": Document{"updb": Document{"username": "alice"}},
		})
		assert.Error(t, err)
	})

	t.Run("identity không có authenticator updb vẫn được ghi", func(t *testing.T) {
		_, err := stores.Identities.InsertOne(ctx, Document{"name": "cert-only-1"})
		require.NoError(t, err)
		_, err = stores.Identities.InsertOne(ctx, Document{"name": "cert-only-2"})
		assert.NoError(t, err)
	})

	t.Run("tên role không được trùng", func(t *testing.T) {
		_, err := stores.Roles.InsertOne(ctx, Document{"name": "unique-role"})
		require.NoError(t, err)
		_, err = stores.Roles.InsertOne(ctx, Document{"name": "unique-role"})
		assert.Error(t, err)
	})
}
