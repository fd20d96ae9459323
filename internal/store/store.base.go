package store

import (
	"context"
	"errors"
	"time"

	"github.com/netfoundry/ziti-console/internal/common"
	"github.com/netfoundry/ziti-console/internal/logger"

	"github.com/google/uuid"
)

// ValidationResult là kết quả validate hook của một collection.
// Errors giữ danh sách lỗi theo format của validator, ErrorText là mô tả gộp.
type ValidationResult struct {
	IsValid   bool
	Errors    any
	ErrorText string
}

// ValidateFunc là validate hook chạy trước mỗi lần ghi document.
type ValidateFunc func(doc Document) ValidationResult

// StoreConfig cấu hình một BaseStore.
type StoreConfig struct {
	FilterableFields []string
	SortableFields   []string
	UniqueFields     []UniqueField
	TTLSeconds       int32
	Validate         ValidateFunc
}

// BaseStore là tầng document store phía trên Engine: stamp id/timestamps/tags,
// chạy validate hook, sanitize mọi criteria của client trước khi chạm engine,
// và thông báo cho observer sau mỗi thay đổi.
//
// Update theo kiểu read-modify-write, không có optimistic concurrency:
// hai writer ghi đồng thời thì bản ghi sau thắng.
type BaseStore struct {
	engine    Engine
	allowed   AllowedFields
	unique    []UniqueField
	ttl       int32
	validate  ValidateFunc
	observers *observerSet
}

// NewBaseStore tạo store trên một engine với cấu hình collection.
func NewBaseStore(engine Engine, cfg StoreConfig) *BaseStore {
	return &BaseStore{
		engine: engine,
		allowed: AllowedFields{
			Filterable: cfg.FilterableFields,
			Sortable:   cfg.SortableFields,
		},
		unique:    cfg.UniqueFields,
		ttl:       cfg.TTLSeconds,
		validate:  cfg.Validate,
		observers: newObserverSet(),
	}
}

// CollectionName trả về tên collection của store.
func (s *BaseStore) CollectionName() string {
	return s.engine.CollectionName()
}

// Engine trả về engine bên dưới (dùng cho seeding và test).
func (s *BaseStore) Engine() Engine {
	return s.engine
}

// Subscribe đăng ký observer cho một event của store.
// Xem EventAltered, EventInsert, EventRemove, ... cho tên event.
func (s *BaseStore) Subscribe(event string, fn Observer) {
	s.observers.subscribe(event, fn)
}

// Initialize đảm bảo collection và các index tồn tại.
func (s *BaseStore) Initialize(ctx context.Context) error {
	return s.engine.Initialize(ctx, InitOptions{
		UniqueFields: s.unique,
		TTLSeconds:   s.ttl,
	})
}

// Destroy xóa collection.
func (s *BaseStore) Destroy(ctx context.Context) error {
	return s.engine.Destroy(ctx)
}

// InsertOne stamp các field hệ thống, validate rồi ghi document.
// Stamp: id (uuid) nếu thiếu, createdAt/updatedAt, tags mặc định map rỗng.
// Trả về document đã stamp.
func (s *BaseStore) InsertOne(ctx context.Context, doc Document) (Document, error) {
	if doc == nil {
		doc = Document{}
	}

	now := time.Now().UTC()
	if _, ok := doc["id"]; !ok {
		doc["id"] = uuid.NewString()
	}
	doc["createdAt"] = now
	doc["updatedAt"] = now
	if _, ok := doc["tags"]; !ok {
		doc["tags"] = Document{}
	}

	if err := s.runValidate(doc); err != nil {
		return nil, err
	}

	if err := s.engine.InsertOne(ctx, doc); err != nil {
		return nil, err
	}

	s.observers.notify(EventAltered, doc)
	s.observers.notify(EventInsert(s.CollectionName()), doc)
	return doc, nil
}

// runValidate chạy validate hook nếu có, trả về lỗi 400 khi document không hợp lệ.
func (s *BaseStore) runValidate(doc Document) error {
	if s.validate == nil {
		return nil
	}
	result := s.validate(doc)
	if result.IsValid {
		return nil
	}
	logger.GetAppLogger().WithField("collection", s.CollectionName()).
		WithField("errors", result.ErrorText).
		Warn("Document không vượt qua validate hook")
	return common.NewValidationError(result.ErrorText, result.Errors)
}

// Find sanitize args theo allow-list rồi truy vấn engine.
func (s *BaseStore) Find(ctx context.Context, args FindArgs) ([]Document, error) {
	return s.engine.Find(ctx, SanitizeFindArgs(args, s.allowed))
}

// FindOne sanitize criteria rồi trả về document đầu tiên khớp.
// Criteria sau khi sanitize mà rỗng thì không chạm engine và trả về
// ErrNotFound: một criteria toàn field không được phép không bao giờ
// được trở thành truy vấn "lấy document bất kỳ".
func (s *BaseStore) FindOne(ctx context.Context, criteria Document) (Document, error) {
	sanitized := SanitizeCriteria(criteria, s.allowed)
	if len(sanitized) == 0 {
		logger.GetAppLogger().WithField("collection", s.CollectionName()).
			Warn("FindOne với criteria rỗng sau khi sanitize")
		return nil, common.ErrNotFound
	}
	return s.engine.FindOne(ctx, sanitized)
}

// FindByID trả về document theo id.
func (s *BaseStore) FindByID(ctx context.Context, id string) (Document, error) {
	return s.engine.FindOne(ctx, Document{"id": id})
}

// Count đếm số document khớp criteria đã sanitize.
func (s *BaseStore) Count(ctx context.Context, criteria Document) (int64, error) {
	return s.engine.Count(ctx, SanitizeCriteria(criteria, s.allowed))
}

// UpdateOne validate rồi thay thế document khớp criteria.
// updatedAt được stamp lại, createdAt giữ nguyên theo doc truyền vào.
func (s *BaseStore) UpdateOne(ctx context.Context, criteria Document, doc Document) (int64, error) {
	sanitized := SanitizeCriteria(criteria, s.allowed)
	if len(sanitized) == 0 {
		return 0, common.ErrNotFound
	}

	doc["updatedAt"] = time.Now().UTC()
	if err := s.runValidate(doc); err != nil {
		return 0, err
	}

	modified, err := s.engine.UpdateOne(ctx, sanitized, doc)
	if err != nil {
		return 0, err
	}
	if modified > 0 {
		s.observers.notify(EventAltered, doc)
		s.observers.notify(EventUpdate(s.CollectionName()), doc)
	}
	return modified, nil
}

// UpdateByID thay thế document theo id, bỏ qua allow-list vì id
// luôn là điều kiện hợp lệ.
func (s *BaseStore) UpdateByID(ctx context.Context, id string, doc Document) (int64, error) {
	doc["updatedAt"] = time.Now().UTC()
	if err := s.runValidate(doc); err != nil {
		return 0, err
	}

	modified, err := s.engine.UpdateOne(ctx, Document{"id": id}, doc)
	if err != nil {
		return 0, err
	}
	if modified > 0 {
		s.observers.notify(EventAltered, doc)
		s.observers.notify(EventUpdate(s.CollectionName()), doc)
	}
	return modified, nil
}

// RemoveOne tìm document theo criteria rồi xóa theo id.
// Không tìm thấy trả về 0 mà không báo lỗi, observer nhận document đã xóa.
func (s *BaseStore) RemoveOne(ctx context.Context, criteria Document) (int64, error) {
	existing, err := s.FindOne(ctx, criteria)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	removed, err := s.engine.RemoveOne(ctx, Document{"id": existing["id"]})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.observers.notify(EventAltered, existing)
		s.observers.notify(EventRemove(s.CollectionName()), existing)
	}
	return removed, nil
}

// RemoveByID xóa document theo id, trả về document đã xóa.
func (s *BaseStore) RemoveByID(ctx context.Context, id string) (Document, error) {
	existing, err := s.engine.FindOne(ctx, Document{"id": id})
	if err != nil {
		return nil, err
	}

	if _, err := s.engine.RemoveOne(ctx, Document{"id": id}); err != nil {
		return nil, err
	}

	s.observers.notify(EventAltered, existing)
	s.observers.notify(EventRemove(s.CollectionName()), existing)
	return existing, nil
}

// RemoveMany xóa tất cả document khớp criteria đã sanitize.
func (s *BaseStore) RemoveMany(ctx context.Context, criteria Document) (int64, error) {
	removed, err := s.engine.RemoveMany(ctx, SanitizeCriteria(criteria, s.allowed))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.observers.notify(EventAltered, nil)
		s.observers.notify(EventRemove(s.CollectionName()), nil)
	}
	return removed, nil
}

// ====================================
// ARRAY SUB-DOCUMENT OPERATIONS
// ====================================

// InsertArraySubDocument stamp id và createdAt cho sub-document (nếu là map)
// rồi push vào array property của document khớp mainCriteria.
func (s *BaseStore) InsertArraySubDocument(ctx context.Context, mainCriteria Document, prop string, sub any) (any, error) {
	if subDoc, ok := toDocument(sub); ok {
		if _, exists := subDoc["id"]; !exists {
			subDoc["id"] = uuid.NewString()
		}
		if _, exists := subDoc["createdAt"]; !exists {
			subDoc["createdAt"] = time.Now().UTC()
		}
		sub = subDoc
	}

	if err := s.engine.InsertArraySubDocument(ctx, mainCriteria, prop, sub); err != nil {
		return nil, err
	}

	payload := s.subEventPayload(ctx, mainCriteria, sub)
	s.observers.notify(EventAltered, payload)
	s.observers.notify(EventInsertSub(s.CollectionName(), prop), payload)
	return sub, nil
}

// subEventPayload dựng payload cho event sub-document: document cha
// (đọc lại theo mainCriteria, best effort) dưới key mainDoc và
// sub-document liên quan dưới key subDoc.
func (s *BaseStore) subEventPayload(ctx context.Context, mainCriteria Document, sub any) Document {
	payload := Document{"mainDoc": mainCriteria, "subDoc": sub}
	if parent, err := s.engine.FindOne(ctx, mainCriteria); err == nil {
		payload["mainDoc"] = parent
	}
	return payload
}

// RemoveArraySubDocument pull các phần tử khớp pullCriteria khỏi array property.
func (s *BaseStore) RemoveArraySubDocument(ctx context.Context, mainCriteria Document, prop string, pullCriteria any) (int64, error) {
	modified, err := s.engine.RemoveArraySubDocument(ctx, mainCriteria, prop, pullCriteria, false)
	if err != nil {
		return 0, err
	}
	if modified > 0 {
		payload := s.subEventPayload(ctx, mainCriteria, pullCriteria)
		s.observers.notify(EventAltered, payload)
		s.observers.notify(EventRemoveSub(s.CollectionName(), prop), payload)
	}
	return modified, nil
}

// RemoveSubDocumentFromAll pull các phần tử khớp pullCriteria khỏi array
// property của mọi document trong collection. Dùng để dọn tham chiếu khi
// entity được join bị xóa.
func (s *BaseStore) RemoveSubDocumentFromAll(ctx context.Context, prop string, pullCriteria any) (int64, error) {
	modified, err := s.engine.RemoveArraySubDocument(ctx, Document{}, prop, pullCriteria, true)
	if err != nil {
		return 0, err
	}
	if modified > 0 {
		// Không có document cha duy nhất, payload chỉ mang sub-document
		payload := Document{"subDoc": pullCriteria}
		s.observers.notify(EventAltered, payload)
		s.observers.notify(EventRemoveSub(s.CollectionName(), prop), payload)
	}
	return modified, nil
}

// FindArraySubDocuments unwind array property và trả về các phần tử khớp args
// (filter/sort/paginate được sanitize theo allow-list của store).
func (s *BaseStore) FindArraySubDocuments(ctx context.Context, mainCriteria Document, prop string, args FindArgs) ([]Document, error) {
	return s.engine.FindArraySubDocuments(ctx, mainCriteria, prop, SanitizeFindArgs(args, s.allowed))
}

// FindOneArraySubDocument trả về phần tử đầu tiên của array property khớp filter.
// Filter ở đây là filter nội bộ (theo id sub-document), không sanitize.
func (s *BaseStore) FindOneArraySubDocument(ctx context.Context, mainCriteria Document, prop string, filter Document) (Document, error) {
	return s.engine.FindOneArraySubDocument(ctx, mainCriteria, prop, filter)
}

// FindArraySubDocumentByID trả về phần tử có id cho trước trong array property.
func (s *BaseStore) FindArraySubDocumentByID(ctx context.Context, mainCriteria Document, prop string, id string) (Document, error) {
	return s.engine.FindOneArraySubDocument(ctx, mainCriteria, prop, Document{"id": id})
}

// UpdateArraySubDocument thay thế phần tử idProp=id trong array property.
func (s *BaseStore) UpdateArraySubDocument(ctx context.Context, mainCriteria Document, prop string, idProp string, id any, sub Document) (int64, error) {
	modified, err := s.engine.UpdateArraySubDocument(ctx, mainCriteria, prop, idProp, id, sub)
	if err != nil {
		return 0, err
	}
	if modified > 0 {
		s.observers.notify(EventAltered, s.subEventPayload(ctx, mainCriteria, sub))
	}
	return modified, nil
}

// FindFilteredByIDArraySubDocument join qua $lookup giữa localIDProp của
// store này và foreignArrayProp bên foreign store, giữ lại các document
// join được với document foreign có foreignIDProp = foreignID.
func (s *BaseStore) FindFilteredByIDArraySubDocument(ctx context.Context, localIDProp string, foreign *BaseStore, foreignIDProp string, foreignID any, foreignArrayProp string, args FindArgs) ([]Document, error) {
	return s.engine.FindFilteredByIDArraySubDocument(
		ctx, localIDProp, foreign.CollectionName(), foreignIDProp, foreignID, foreignArrayProp,
		SanitizeFindArgs(args, s.allowed))
}

// FindFilteredByForeignIDArraySubDocument trả về các document có id xuất hiện
// trong foreignResultProp của các document bên foreign store khớp điều kiện.
func (s *BaseStore) FindFilteredByForeignIDArraySubDocument(ctx context.Context, foreign *BaseStore, foreignArrayProp string, foreignArrayPropID any, foreignResultProp string, args FindArgs) ([]Document, error) {
	return s.engine.FindFilteredByForeignIDArraySubDocument(
		ctx, foreign.CollectionName(), foreignArrayProp, foreignArrayPropID, foreignResultProp,
		SanitizeFindArgs(args, s.allowed))
}
