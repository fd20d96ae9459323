package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()

	t.Run("entity lỗi được bỏ qua, entity còn lại vẫn được ghi", func(t *testing.T) {
		s := newTestStore(t, "roles", StoreConfig{
			UniqueFields: []UniqueField{Unique("name")},
		})

		err := Seed(ctx, s, []Document{
			{"name": "admin"},
			{"name": "admin"},
			{"name": "viewer"},
		}, SeedOptions{})
		require.NoError(t, err)

		count, err := s.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("DestroyFirst xóa dữ liệu cũ", func(t *testing.T) {
		s := newTestStore(t, "roles", StoreConfig{})
		_, err := s.InsertOne(ctx, Document{"name": "stale"})
		require.NoError(t, err)

		err = Seed(ctx, s, []Document{{"name": "fresh"}}, SeedOptions{DestroyFirst: true})
		require.NoError(t, err)

		count, err := s.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestSeedFromDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writeFixture := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	writeFixture("roles.json", `[{"name": "admin"}, {"name": "${ROLE_NAME}"}]`)
	writeFixture("unknown.json", `[{"name": "ignored"}]`)
	writeFixture("notes.txt", `not a fixture`)

	s := newTestStore(t, "roles", StoreConfig{})
	stores := map[string]*BaseStore{"roles": s}

	err := SeedFromDirectory(ctx, stores, dir, SeedOptions{
		ReplaceValues: map[string]string{"ROLE_NAME": "operator"},
	})
	require.NoError(t, err)

	t.Run("fixture được seed với placeholder đã thay", func(t *testing.T) {
		docs, err := s.Find(ctx, FindArgs{ReturnAll: true})
		require.NoError(t, err)
		require.Len(t, docs, 2)

		names := []string{docs[0]["name"].(string), docs[1]["name"].(string)}
		assert.ElementsMatch(t, []string{"admin", "operator"}, names)
	})

	t.Run("thư mục không tồn tại là lỗi", func(t *testing.T) {
		err := SeedFromDirectory(ctx, stores, filepath.Join(dir, "missing"), SeedOptions{})
		assert.Error(t, err)
	})

	t.Run("fixture JSON hỏng là lỗi", func(t *testing.T) {
		broken := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(broken, "roles.json"), []byte("{broken"), 0o644))
		err := SeedFromDirectory(ctx, stores, broken, SeedOptions{})
		assert.Error(t, err)
	})
}
