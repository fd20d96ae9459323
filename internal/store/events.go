package store

import (
	"sync"

	"github.com/netfoundry/ziti-console/internal/logger"
)

// EventAltered phát ra cho mọi thay đổi dữ liệu của store, bên cạnh
// event riêng theo thao tác và collection.
const EventAltered = "altered"

// Tên event theo thao tác. Observer đăng ký theo tên event cụ thể.
func EventInsert(collection string) string { return "insert-" + collection }
func EventUpdate(collection string) string { return "update-" + collection }
func EventRemove(collection string) string { return "remove-" + collection }

// Event cho array sub-document của một property.
func EventInsertSub(collection, prop string) string { return "insert-" + collection + "-" + prop }
func EventRemoveSub(collection, prop string) string { return "remove-" + collection + "-" + prop }

// Observer nhận thông báo khi dữ liệu thay đổi. Với thao tác top-level,
// doc là document vừa ghi hoặc vừa xóa. Với thao tác sub-document, doc là
// payload {mainDoc, subDoc}: document cha và sub-document liên quan.
type Observer func(event string, doc Document)

// observerSet quản lý observer theo tên event cho một store.
// Đăng ký tường minh qua Subscribe, không dùng global emitter.
type observerSet struct {
	mu        sync.RWMutex
	observers map[string][]Observer
}

func newObserverSet() *observerSet {
	return &observerSet{
		observers: make(map[string][]Observer),
	}
}

func (s *observerSet) subscribe(event string, fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers[event] = append(s.observers[event], fn)
}

// notify gọi lần lượt các observer của event. Panic trong một observer
// được recover và log, không ảnh hưởng các observer còn lại hay thao tác gốc.
func (s *observerSet) notify(event string, doc Document) {
	s.mu.RLock()
	list := make([]Observer, len(s.observers[event]))
	copy(list, s.observers[event])
	s.mu.RUnlock()

	for _, fn := range list {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.GetAppLogger().WithField("event", event).WithField("panic", r).
						Error("Observer panic khi xử lý event")
				}
			}()
			fn(event, doc)
		}()
	}
}
