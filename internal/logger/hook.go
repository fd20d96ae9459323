package logger

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// AsyncHook ghi log bất đồng bộ qua một goroutine riêng để file I/O
// không chặn request handling. Channel đầy thì entry bị bỏ qua thay vì
// chặn caller. Entry mang field "_filtered" (do FilterHook đánh dấu)
// không được ghi.
type AsyncHook struct {
	writers []io.Writer
	entries chan *logrus.Entry
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// NewAsyncHook tạo async hook ghi vào các writers với buffer bufferSize entries.
func NewAsyncHook(writers []io.Writer, bufferSize int) *AsyncHook {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	hook := &AsyncHook{
		writers: writers,
		entries: make(chan *logrus.Entry, bufferSize),
	}

	hook.wg.Add(1)
	go hook.processEntries()
	return hook
}

// Levels trả về các log levels mà hook này xử lý.
func (h *AsyncHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire đưa entry vào channel, không bao giờ block.
// Sau khi hook đóng, entry được ghi trực tiếp vào các writers.
func (h *AsyncHook) Fire(entry *logrus.Entry) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if closed {
		data, err := formatEntry(entry)
		if err != nil {
			return err
		}
		for _, writer := range h.writers {
			_, _ = writer.Write(data)
		}
		return nil
	}

	select {
	case h.entries <- entry:
	default:
		// Channel đầy: bỏ qua entry, không log ở đây để tránh vòng lặp
	}
	return nil
}

// processEntries chạy trong goroutine riêng, recover mọi panic để
// logger không làm crash server.
func (h *AsyncHook) processEntries() {
	defer h.wg.Done()

	for entry := range h.entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					// Không dùng logger ở đây vì sẽ tạo vòng lặp
					fmt.Fprintf(os.Stderr, "[LOGGER PANIC] Logger goroutine panic recovered: %v\n", r)
					debug.PrintStack()
				}
			}()

			if filtered, ok := entry.Data["_filtered"].(bool); ok && filtered {
				return
			}

			data, err := formatEntry(entry)
			if err != nil {
				return
			}
			for _, writer := range h.writers {
				_, _ = writer.Write(data)
			}
		}()
	}
}

// formatEntry format entry bằng formatter của logger, loại bỏ field
// đánh dấu "_filtered" trước khi format.
func formatEntry(entry *logrus.Entry) ([]byte, error) {
	if _, ok := entry.Data["_filtered"]; ok {
		entry = entry.Dup()
		delete(entry.Data, "_filtered")
	}

	if entry.Logger != nil && entry.Logger.Formatter != nil {
		return entry.Logger.Formatter.Format(entry)
	}

	line, err := entry.String()
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}
