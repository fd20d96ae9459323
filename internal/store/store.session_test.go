package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfoundry/ziti-console/internal/common"
)

func newTestSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	db := NewMemoryDatabase()
	s := NewSessionStore(NewMemoryEngine(db, "sessions"), StoreConfig{
		FilterableFields: []string{"token"},
		UniqueFields:     []UniqueField{Unique("token")},
	})
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func TestSessionStoreNetworkSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	session, err := s.InsertOne(ctx, Document{"token": "session-token"})
	require.NoError(t, err)
	sessionID := session["id"].(string)

	t.Run("thêm network session được stamp id", func(t *testing.T) {
		ns, err := s.InsertNetworkSession(ctx, sessionID, Document{"token": "ns-1", "serviceId": "svc"})
		require.NoError(t, err)
		assert.NotEmpty(t, ns["id"])
		assert.Equal(t, "ns-1", ns["token"])
	})

	t.Run("liệt kê network session của một session", func(t *testing.T) {
		_, err := s.InsertNetworkSession(ctx, sessionID, Document{"token": "ns-2"})
		require.NoError(t, err)

		docs, err := s.FindNetworkSessions(ctx, sessionID, FindArgs{})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("tìm một network session theo filter", func(t *testing.T) {
		doc, err := s.FindNetworkSession(ctx, sessionID, Document{"token": "ns-1"})
		require.NoError(t, err)
		assert.Equal(t, "svc", doc["serviceId"])
	})

	t.Run("xóa network session theo token", func(t *testing.T) {
		modified, err := s.RemoveNetworkSession(ctx, sessionID, "ns-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), modified)

		_, err = s.FindNetworkSession(ctx, sessionID, Document{"token": "ns-1"})
		assert.True(t, errors.Is(err, common.ErrNotFound))
	})

	t.Run("xóa token không tồn tại trả về 0", func(t *testing.T) {
		modified, err := s.RemoveNetworkSession(ctx, sessionID, "ghost")
		require.NoError(t, err)
		assert.Zero(t, modified)
	})

	t.Run("session id không tồn tại thì danh sách rỗng", func(t *testing.T) {
		docs, err := s.FindNetworkSessions(ctx, "missing", FindArgs{})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}
