package logger

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// FilterHook lọc log entries theo hai tiêu chí mà các tầng của hệ thống
// gắn vào entry: tên collection (field "collection") và log level.
// Entry bị lọc được đánh dấu bằng field "_filtered"; AsyncHook kiểm tra
// field này và bỏ qua entry khi ghi.
type FilterHook struct {
	// map[string]bool để lookup nhanh; chứa "*" nghĩa là cho phép tất cả
	allowedCollections map[string]bool
	allowedLevels      map[string]bool

	hasCollectionFilter bool
	hasLevelFilter      bool

	mu sync.RWMutex
}

// NewFilterHook tạo filter hook từ config.
func NewFilterHook(cfg *LogConfig) *FilterHook {
	hook := &FilterHook{}
	hook.updateFilters(cfg)
	return hook
}

func (h *FilterHook) updateFilters(cfg *LogConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.allowedCollections = parseFilter(cfg.FilterCollections)
	h.hasCollectionFilter = !h.allowedCollections["*"]

	h.allowedLevels = parseFilter(cfg.FilterLevels)
	h.hasLevelFilter = !h.allowedLevels["*"]
}

// parseFilter parse chuỗi "value1,value2" thành map lookup.
// Chuỗi rỗng hoặc "*" cho phép tất cả.
func parseFilter(filterStr string) map[string]bool {
	result := make(map[string]bool)
	if filterStr == "" || filterStr == "*" {
		result["*"] = true
		return result
	}

	for _, v := range strings.Split(filterStr, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			result[strings.ToLower(v)] = true
		}
	}
	return result
}

// Levels trả về các log levels mà hook này xử lý.
func (h *FilterHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire đánh dấu entry không vượt qua filter. Không trả về lỗi để
// không chặn các hook còn lại của logger.
func (h *FilterHook) Fire(entry *logrus.Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.hasLevelFilter {
		if !h.allowedLevels[strings.ToLower(entry.Level.String())] {
			entry.Data["_filtered"] = true
			return nil
		}
	}

	if h.hasCollectionFilter {
		// Entry không gắn collection thì không bị lọc theo tiêu chí này
		if collection, ok := entry.Data["collection"].(string); ok && collection != "" {
			if !h.allowedCollections[strings.ToLower(collection)] {
				entry.Data["_filtered"] = true
				return nil
			}
		}
	}

	return nil
}
