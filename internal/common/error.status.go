package common

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// HTTP Status Code Constants
const (
	// Success Codes (2xx)
	StatusOK        = 200 // Thành công
	StatusCreated   = 201 // Tạo mới thành công
	StatusNoContent = 204 // Thành công nhưng không có nội dung trả về

	// Client Error Codes (4xx)
	StatusBadRequest           = 400 // Yêu cầu không hợp lệ
	StatusUnauthorized         = 401 // Chưa xác thực
	StatusForbidden            = 403 // Không có quyền truy cập
	StatusNotFound             = 404 // Không tìm thấy tài nguyên
	StatusConflict             = 409 // Xung đột dữ liệu
	StatusUnsupportedMediaType = 415 // Content-Type không được hỗ trợ
	StatusTooManyRequests      = 429 // Quá nhiều yêu cầu

	// Server Error Codes (5xx)
	StatusInternalServerError = 500 // Lỗi server
	StatusServiceUnavailable  = 503 // Dịch vụ không khả dụng
)

// Response Messages
const (
	MsgSuccess = "Thao tác thành công"
	MsgCreated = "Tạo mới thành công"

	MsgBadRequest      = "Yêu cầu không hợp lệ"
	MsgNotFound        = "Không tìm thấy tài nguyên"
	MsgConflict        = "Xung đột dữ liệu"
	MsgInternalError   = "Lỗi hệ thống"
	MsgValidationError = "Dữ liệu không hợp lệ"
	MsgDatabaseError   = "Lỗi tương tác với cơ sở dữ liệu"
)

// ErrorCode định nghĩa mã lỗi chi tiết
type ErrorCode struct {
	Code        string // Mã lỗi (ví dụ: STORE_001)
	Category    string // Phân loại lỗi (ví dụ: Store)
	SubCategory string // Phân loại con (ví dụ: Duplicate)
	Description string // Mô tả chi tiết
}

// Định nghĩa các mã lỗi theo hệ thống phân cấp
var (
	// System Errors (SYS_xxx)
	ErrCodeInternalServer = ErrorCode{
		Code:        "SYS_001",
		Category:    "System",
		SubCategory: "Internal",
		Description: "Lỗi hệ thống nội bộ",
	}

	// Validation Errors (VAL_xxx)
	ErrCodeValidation = ErrorCode{
		Code:        "VAL",
		Category:    "Validation",
		SubCategory: "General",
		Description: "Lỗi xác thực dữ liệu chung",
	}

	ErrCodeValidationInput = ErrorCode{
		Code:        "VAL_001",
		Category:    "Validation",
		SubCategory: "Input",
		Description: "Lỗi dữ liệu đầu vào",
	}

	ErrCodeValidationDocument = ErrorCode{
		Code:        "VAL_002",
		Category:    "Validation",
		SubCategory: "Document",
		Description: "Document không vượt qua validate hook của collection",
	}

	// Database Errors (DB_xxx)
	ErrCodeDatabase = ErrorCode{
		Code:        "DB",
		Category:    "Database",
		SubCategory: "General",
		Description: "Lỗi cơ sở dữ liệu chung",
	}

	ErrCodeDatabaseConnection = ErrorCode{
		Code:        "DB_001",
		Category:    "Database",
		SubCategory: "Connection",
		Description: "Lỗi kết nối cơ sở dữ liệu",
	}

	ErrCodeDatabaseQuery = ErrorCode{
		Code:        "DB_002",
		Category:    "Database",
		SubCategory: "Query",
		Description: "Lỗi truy vấn dữ liệu",
	}

	// Store Errors (STORE_xxx)
	ErrCodeStoreEngine = ErrorCode{
		Code:        "STORE_001",
		Category:    "Store",
		SubCategory: "Engine",
		Description: "Lỗi tầng storage engine",
	}

	ErrCodeStoreDuplicate = ErrorCode{
		Code:        "STORE_002",
		Category:    "Store",
		SubCategory: "Duplicate",
		Description: "Giá trị bị trùng trên unique index",
	}
)

// Error định nghĩa cấu trúc lỗi chi tiết
type Error struct {
	Code       ErrorCode // Mã lỗi chi tiết
	Message    string    // Thông báo lỗi
	StatusCode int       // HTTP status code
	Details    any       // Thông tin chi tiết thêm về lỗi
}

// Error trả về message của lỗi
func (e *Error) Error() string {
	return e.Message
}

// Is kiểm tra xem error có phải là target error không (hỗ trợ errors.Is)
func (e *Error) Is(target error) bool {
	targetErr, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code.Code == targetErr.Code.Code && e.Message == targetErr.Message
}

// NewError tạo một error mới với đầy đủ thông tin
func NewError(code ErrorCode, message string, statusCode int, details any) error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// Custom errors
var (
	// Validation Errors
	ErrInvalidInput  = NewError(ErrCodeValidationInput, "Dữ liệu đầu vào không hợp lệ", StatusBadRequest, nil)
	ErrRequiredField = NewError(ErrCodeValidationInput, "Thiếu thông tin bắt buộc", StatusBadRequest, nil)

	// Database / Store Errors
	ErrNotFound   = NewError(ErrCodeDatabaseQuery, "Không tìm thấy dữ liệu", StatusNotFound, nil)
	ErrDuplicate  = NewError(ErrCodeStoreDuplicate, "Dữ liệu đã tồn tại", StatusConflict, nil)
	ErrConnection = NewError(ErrCodeDatabaseConnection, "Lỗi kết nối cơ sở dữ liệu", StatusServiceUnavailable, nil)
)

// NewValidationError tạo lỗi 400 khi document không vượt qua validate hook.
// details chứa danh sách lỗi do hook trả về.
func NewValidationError(message string, details any) error {
	if message == "" {
		message = MsgValidationError
	}
	return NewError(ErrCodeValidationDocument, message, StatusBadRequest, details)
}

// NewEngineError tạo lỗi 500 cho các lỗi không phân loại được từ storage engine.
func NewEngineError(message string, inner error) error {
	return NewError(ErrCodeStoreEngine, message, StatusInternalServerError, inner)
}

// duplicateIndexPattern bắt tên unique index trong message lỗi duplicate key
// của MongoDB. Index được đặt tên theo dạng u_<collection>#<field[;field]>.
var duplicateIndexPattern = regexp.MustCompile(`u_(.*?)#(.*?) `)

// DuplicateDetails mô tả vi phạm unique index, trả về trong Details của lỗi 409.
type DuplicateDetails struct {
	Collection string   `json:"collection"`
	Fields     []string `json:"fields"`
}

// NewDuplicateError tạo lỗi 409 cho vi phạm unique index đã biết collection và fields.
func NewDuplicateError(collection string, fields []string) error {
	return NewError(
		ErrCodeStoreDuplicate,
		fmt.Sprintf("Giá trị bị trùng trên các trường: %s", strings.Join(fields, ", ")),
		StatusConflict,
		DuplicateDetails{Collection: collection, Fields: fields},
	)
}

// ParseDuplicateKeyError phân tích message lỗi duplicate key của MongoDB
// để lấy ra collection và danh sách field vi phạm từ tên index u_<collection>#<fields>.
// Trả về ok=false nếu message không chứa index theo quy ước đặt tên.
func ParseDuplicateKeyError(err error) (collection string, fields []string, ok bool) {
	if err == nil {
		return "", nil, false
	}
	matches := duplicateIndexPattern.FindStringSubmatch(err.Error())
	if len(matches) != 3 {
		return "", nil, false
	}
	return matches[1], strings.Split(matches[2], ";"), true
}

// ConvertMongoError chuyển đổi lỗi MongoDB driver sang lỗi hệ thống.
// Lỗi đã thuộc taxonomy (*Error) được giữ nguyên, không convert lại.
func ConvertMongoError(err error) error {
	if err == nil {
		return nil
	}

	var customErr *Error
	if errors.As(err, &customErr) {
		return err
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}

	// Duplicate key: lấy collection và fields từ tên index nếu parse được
	if mongo.IsDuplicateKeyError(err) {
		if collection, fields, ok := ParseDuplicateKeyError(err); ok {
			return NewDuplicateError(collection, fields)
		}
		return ErrDuplicate
	}

	if mongo.IsNetworkError(err) {
		return NewError(ErrCodeDatabaseConnection, "Lỗi mạng khi kết nối MongoDB", StatusServiceUnavailable, err)
	}
	if mongo.IsTimeout(err) {
		return NewError(ErrCodeDatabaseConnection, "Kết nối MongoDB bị timeout", StatusServiceUnavailable, err)
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch {
		case cmdErr.Code >= 100 && cmdErr.Code < 200:
			return NewError(ErrCodeDatabaseConnection, MsgDatabaseError, StatusServiceUnavailable, err)
		case cmdErr.Code >= 300 && cmdErr.Code < 500:
			return NewError(ErrCodeDatabaseQuery, MsgDatabaseError, StatusInternalServerError, err)
		}
	}

	// Không phân loại được, coi là lỗi engine chung
	return NewEngineError(MsgDatabaseError, err)
}
