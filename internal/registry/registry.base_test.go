package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterGet(t *testing.T) {
	r := NewRegistry[string]()

	t.Run("đăng ký item mới", func(t *testing.T) {
		isNew, err := r.Register("a", "value-a")
		require.NoError(t, err)
		assert.True(t, isNew)

		item, exists := r.Get("a")
		require.True(t, exists)
		assert.Equal(t, "value-a", item)
	})

	t.Run("đăng ký trùng tên thì ghi đè", func(t *testing.T) {
		isNew, err := r.Register("a", "value-a2")
		require.NoError(t, err)
		assert.False(t, isNew)

		item, _ := r.Get("a")
		assert.Equal(t, "value-a2", item)
	})

	t.Run("tên rỗng là lỗi", func(t *testing.T) {
		_, err := r.Register("", "x")
		assert.Error(t, err)
	})

	t.Run("item không tồn tại", func(t *testing.T) {
		_, exists := r.Get("missing")
		assert.False(t, exists)
	})
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry[int]()

	t.Run("tạo mới khi chưa có", func(t *testing.T) {
		created := 0
		item, err := r.GetOrCreate("counter", func() (int, error) {
			created++
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, item)
		assert.Equal(t, 1, created)

		item, err = r.GetOrCreate("counter", func() (int, error) {
			created++
			return 0, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, item, "lần hai phải trả về item đã có")
		assert.Equal(t, 1, created, "creator không được gọi lại")
	})

	t.Run("creator trả lỗi thì không đăng ký", func(t *testing.T) {
		_, err := r.GetOrCreate("broken", func() (int, error) {
			return 0, errors.New("tạo thất bại")
		})
		require.Error(t, err)
		_, exists := r.Get("broken")
		assert.False(t, exists)
	})
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry[string]()
	_, _ = r.Register("a", "1")
	_, _ = r.Register("b", "2")

	t.Run("Names liệt kê các item", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"a", "b"}, r.Names())
	})

	t.Run("Clear gọi cleanup trước khi xóa", func(t *testing.T) {
		var cleaned string
		deleted, err := r.Clear("a", func(item string) error {
			cleaned = item
			return nil
		})
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.Equal(t, "1", cleaned)
	})

	t.Run("Clear item không tồn tại trả về false", func(t *testing.T) {
		deleted, err := r.Clear("ghost", nil)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("cleanup lỗi thì giữ nguyên item", func(t *testing.T) {
		deleted, err := r.Clear("b", func(string) error {
			return errors.New("không giải phóng được")
		})
		require.Error(t, err)
		assert.False(t, deleted)
		_, exists := r.Get("b")
		assert.True(t, exists)
	})

	t.Run("ClearAll xóa toàn bộ", func(t *testing.T) {
		count, err := r.ClearAll(nil)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Empty(t, r.Names())
	})
}
