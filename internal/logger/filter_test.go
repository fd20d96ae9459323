package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(level logrus.Level, fields logrus.Fields) *logrus.Entry {
	entry := logrus.NewEntry(logrus.New())
	entry.Level = level
	if fields != nil {
		entry.Data = fields
	}
	return entry
}

func isFiltered(entry *logrus.Entry) bool {
	filtered, ok := entry.Data["_filtered"].(bool)
	return ok && filtered
}

func TestParseFilter(t *testing.T) {
	t.Run("chuỗi rỗng cho phép tất cả", func(t *testing.T) {
		assert.True(t, parseFilter("")["*"])
		assert.True(t, parseFilter("*")["*"])
	})

	t.Run("danh sách ngăn cách dấu phẩy", func(t *testing.T) {
		result := parseFilter("identities, Sessions")
		assert.True(t, result["identities"])
		assert.True(t, result["sessions"], "giá trị phải được lowercase")
		assert.False(t, result["*"])
	})
}

func TestFilterHook(t *testing.T) {
	t.Run("config mặc định không lọc gì", func(t *testing.T) {
		hook := NewFilterHook(DefaultConfig())

		entry := newEntry(logrus.DebugLevel, logrus.Fields{"collection": "anything"})
		require.NoError(t, hook.Fire(entry))
		assert.False(t, isFiltered(entry))
	})

	t.Run("lọc theo level", func(t *testing.T) {
		hook := NewFilterHook(&LogConfig{FilterLevels: "warn,error", FilterCollections: "*"})

		info := newEntry(logrus.InfoLevel, nil)
		require.NoError(t, hook.Fire(info))
		assert.True(t, isFiltered(info))

		warn := newEntry(logrus.WarnLevel, nil)
		require.NoError(t, hook.Fire(warn))
		assert.False(t, isFiltered(warn))
	})

	t.Run("lọc theo collection", func(t *testing.T) {
		hook := NewFilterHook(&LogConfig{FilterLevels: "*", FilterCollections: "identities"})

		sessions := newEntry(logrus.InfoLevel, logrus.Fields{"collection": "sessions"})
		require.NoError(t, hook.Fire(sessions))
		assert.True(t, isFiltered(sessions))

		identities := newEntry(logrus.InfoLevel, logrus.Fields{"collection": "identities"})
		require.NoError(t, hook.Fire(identities))
		assert.False(t, isFiltered(identities))
	})

	t.Run("entry không gắn collection không bị lọc theo collection", func(t *testing.T) {
		hook := NewFilterHook(&LogConfig{FilterLevels: "*", FilterCollections: "identities"})

		entry := newEntry(logrus.InfoLevel, nil)
		require.NoError(t, hook.Fire(entry))
		assert.False(t, isFiltered(entry))
	})
}

func TestDefaultConfigFilters(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "*", cfg.FilterCollections)
	assert.Equal(t, "*", cfg.FilterLevels)
}
