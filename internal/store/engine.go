// Package store cung cấp tầng lưu trữ document cho backend quản trị:
// sanitize criteria theo allow-list, storage engine (MongoDB hoặc memory),
// và BaseStore với stamping, validate hook và observer notification.
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Document là bản ghi dạng map. Mọi tầng của store làm việc trên map
// thay vì struct cố định vì schema của từng collection do validate hook quyết định.
type Document = bson.M

// Paginate chứa thông số phân trang đã được sanitize.
type Paginate struct {
	Skip  int64 `json:"skip"`
	Limit int64 `json:"limit"`
}

// FindArgs gom filter, sort và paginate cho một truy vấn.
// Sort dùng bson.D để giữ thứ tự các key do client gửi lên.
// ReturnAll bỏ qua paginate (chỉ dùng nội bộ, không expose qua API).
type FindArgs struct {
	Filter    Document
	Sort      bson.D
	Paginate  Paginate
	ReturnAll bool
}

/// UniqueField mô tả một unique index: một phần tử là index đơn,
// nhiều phần tử là composite index.
type UniqueField []string

// Unique là helper tạo UniqueField.
func Unique(fields ...string) UniqueField {
	return UniqueField(fields)
}

// InitOptions chứa thông số khởi tạo collection cho engine.
// TTLSeconds > 0 sẽ tạo TTL index trên updatedAt.
type InitOptions struct {
	UniqueFields []UniqueField
	TTLSeconds   int32
}

// Engine là contract của tầng storage engine. BaseStore chỉ nói chuyện
// với storage qua interface này, cho phép thay MongoDB bằng memory engine
// trong test hoặc khi chạy embedded.
type Engine interface {
	// CollectionName trả về tên collection engine đang quản lý.
	CollectionName() string

	// Initialize đảm bảo collection tồn tại và tạo các unique/TTL index.
	Initialize(ctx context.Context, opts InitOptions) error

	// Destroy xóa collection nếu tồn tại.
	Destroy(ctx context.Context) error

	// InsertOne ghi một document. Vi phạm unique index trả về lỗi 409
	// kèm danh sách field vi phạm trong Details.
	InsertOne(ctx context.Context, doc Document) error

	// UpdateOne thay thế toàn bộ document đầu tiên khớp filter.
	// Trả về số document bị ảnh hưởng.
	UpdateOne(ctx context.Context, filter Document, doc Document) (int64, error)

	// RemoveOne xóa document đầu tiên khớp criteria, trả về số document đã xóa.
	RemoveOne(ctx context.Context, criteria Document) (int64, error)

	// RemoveMany xóa tất cả document khớp criteria, trả về số document đã xóa.
	RemoveMany(ctx context.Context, criteria Document) (int64, error)

	// Find trả về danh sách document theo filter/sort/paginate.
	Find(ctx context.Context, args FindArgs) ([]Document, error)

	// FindOne trả về document đầu tiên khớp filter, ErrNotFound nếu không có.
	FindOne(ctx context.Context, filter Document) (Document, error)

	// Count đếm số document khớp filter.
	Count(ctx context.Context, filter Document) (int64, error)

	// InsertArraySubDocument push một phần tử vào array property của
	// document khớp mainCriteria. Phần tử có thể là sub-document hoặc giá trị scalar.
	InsertArraySubDocument(ctx context.Context, mainCriteria Document, prop string, sub any) error

	// RemoveArraySubDocument pull các phần tử khớp pullCriteria khỏi array property.
	// pullCriteria là Document khi phần tử là sub-document, hoặc giá trị scalar.
	// multi=true áp dụng cho mọi document khớp mainCriteria.
	RemoveArraySubDocument(ctx context.Context, mainCriteria Document, prop string, pullCriteria any, multi bool) (int64, error)

	// FindArraySubDocuments unwind array property và trả về các phần tử
	// khớp args.Filter, đã sort và phân trang.
	FindArraySubDocuments(ctx context.Context, mainCriteria Document, prop string, args FindArgs) ([]Document, error)

	// FindOneArraySubDocument trả về phần tử đầu tiên của array property
	// khớp filter, ErrNotFound nếu không có.
	FindOneArraySubDocument(ctx context.Context, mainCriteria Document, prop string, filter Document) (Document, error)

	// UpdateArraySubDocument thay thế phần tử có idProp=id trong array property
	// bằng positional update.
	UpdateArraySubDocument(ctx context.Context, mainCriteria Document, prop string, idProp string, id any, sub Document) (int64, error)

	// FindFilteredByIDArraySubDocument trả về các document của collection này
	// mà id của chúng nằm trong array property của document foreignID
	// bên collection foreignCollection (join qua $lookup).
	FindFilteredByIDArraySubDocument(ctx context.Context, localIDProp string, foreignCollection string, foreignIDProp string, foreignID any, foreignArrayProp string, args FindArgs) ([]Document, error)

	// FindFilteredByForeignIDArraySubDocument trả về các document của collection
	// này có id xuất hiện trong foreignResultProp của các document bên
	// foreignCollection khớp foreignArrayProp=foreignArrayPropID.
	FindFilteredByForeignIDArraySubDocument(ctx context.Context, foreignCollection string, foreignArrayProp string, foreignArrayPropID any, foreignResultProp string, args FindArgs) ([]Document, error)
}
