package store

import (
	"context"
)

// NetworkSessionProp là tên array property chứa network session bên trong
// một session document.
const NetworkSessionProp = "networkSessions"

// SessionStore là BaseStore cho collection sessions, bổ sung các thao tác
// trên array sub-document networkSessions.
type SessionStore struct {
	*BaseStore
}

// NewSessionStore tạo session store trên một engine.
func NewSessionStore(engine Engine, cfg StoreConfig) *SessionStore {
	return &SessionStore{
		BaseStore: NewBaseStore(engine, cfg),
	}
}

// InsertNetworkSession thêm một network session vào session có id cho trước.
// Trả về network session đã được stamp id.
func (s *SessionStore) InsertNetworkSession(ctx context.Context, id string, networkSession Document) (Document, error) {
	sub, err := s.InsertArraySubDocument(ctx, Document{"id": id}, NetworkSessionProp, networkSession)
	if err != nil {
		return nil, err
	}
	doc, _ := toDocument(sub)
	return doc, nil
}

// RemoveNetworkSession xóa network session theo token khỏi session có id cho trước.
func (s *SessionStore) RemoveNetworkSession(ctx context.Context, id string, networkSessionToken string) (int64, error) {
	return s.RemoveArraySubDocument(ctx, Document{"id": id}, NetworkSessionProp, Document{"token": networkSessionToken})
}

// FindNetworkSession trả về network session đầu tiên khớp filter trong session id.
func (s *SessionStore) FindNetworkSession(ctx context.Context, id string, filter Document) (Document, error) {
	return s.FindOneArraySubDocument(ctx, Document{"id": id}, NetworkSessionProp, filter)
}

// FindNetworkSessions trả về danh sách network session của session id theo args.
func (s *SessionStore) FindNetworkSessions(ctx context.Context, id string, args FindArgs) ([]Document, error) {
	return s.FindArraySubDocuments(ctx, Document{"id": id}, NetworkSessionProp, args)
}
