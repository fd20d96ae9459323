package basehdl

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/netfoundry/ziti-console/internal/common"

	"github.com/gofiber/fiber/v3"
)

// APIError là một phần tử trong mảng errors của error envelope.
type APIError struct {
	Code     string `json:"code"`
	Msg      string `json:"msg"`
	Property string `json:"property,omitempty"`
	Details  any    `json:"details,omitempty"`
}

// Bảng API error codes trả về cho client.
var (
	APIErrNotFound = APIError{
		Code: "NOT_FOUND",
		Msg:  "Không tìm thấy tài nguyên hoặc tài nguyên không còn tồn tại",
	}
	APIErrUnspecified = APIError{
		Code: "UNSPECIFIED",
		Msg:  "Lỗi không xác định, vui lòng thử lại",
	}
	APIErrEntityAlreadyAssigned = APIError{
		Code: "ENTITY_ALREADY_ASSIGNED",
		Msg:  "Entity đã được gán từ trước",
	}
	APIErrInvalidIDSupplied = APIError{
		Code: "INVALID_ID_SUPPLIED",
		Msg:  "Id không hợp lệ hoặc không tồn tại",
	}
	APIErrInsufficientAccess = APIError{
		Code: "INSUFFICIENT_ACCESS",
		Msg:  "Không đủ quyền thực hiện thao tác",
	}
	APIErrDuplicateValue = APIError{
		Code: "DUPLICATE_VALUE",
		Msg:  "Giá trị bị trùng trên trường yêu cầu duy nhất",
	}
	APIErrCouldNotValidate = APIError{
		Code: "COULD_NOT_VALIDATE",
		Msg:  "Dữ liệu gửi lên không hợp lệ",
	}
	APIErrInvalidFilter = APIError{
		Code: "INVALID_FILTER",
		Msg:  "Filter hoặc sort không đúng định dạng JSON",
	}
	APIErrUnsupportedMediaType = APIError{
		Code: "UNSUPPORTED_MEDIA_TYPE",
		Msg:  "Content-Type không được hỗ trợ, yêu cầu application/json",
	}
)

// JSONResponse trả về JSON response với Content-Type: application/json; charset=utf-8
func JSONResponse(c fiber.Ctx, statusCode int, body any) error {
	c.Set("Content-Type", "application/json; charset=utf-8")
	return c.Status(statusCode).JSON(body)
}

// SuccessBody dựng success envelope {meta, data}.
func SuccessBody(meta fiber.Map, data any) fiber.Map {
	if meta == nil {
		meta = fiber.Map{}
	}
	return fiber.Map{"meta": meta, "data": data}
}

// ErrorBody dựng error envelope {meta, errors}.
func ErrorBody(errs ...APIError) fiber.Map {
	return fiber.Map{"meta": fiber.Map{}, "errors": errs}
}

// RespondError trả về một API error với status code cho trước.
func RespondError(c fiber.Ctx, statusCode int, apiErr APIError) error {
	return JSONResponse(c, statusCode, ErrorBody(apiErr))
}

// HandleError map lỗi từ tầng store sang error envelope.
// Lỗi thuộc taxonomy (*common.Error) giữ nguyên status code và mang Details,
// lỗi khác trả về 500 UNSPECIFIED.
func HandleError(c fiber.Ctx, err error) error {
	var customErr *common.Error
	if errors.As(err, &customErr) {
		return JSONResponse(c, customErr.StatusCode, ErrorBody(apiErrorFor(customErr)))
	}
	return JSONResponse(c, common.StatusInternalServerError, ErrorBody(APIErrUnspecified))
}

// apiErrorFor chọn API error code theo phân loại lỗi nội bộ.
func apiErrorFor(err *common.Error) APIError {
	switch {
	case err.Code.Code == common.ErrCodeStoreDuplicate.Code:
		apiErr := APIErrDuplicateValue
		apiErr.Details = err.Details
		return apiErr
	case err.Code.Code == common.ErrCodeValidationDocument.Code:
		apiErr := APIErrCouldNotValidate
		apiErr.Msg = err.Message
		apiErr.Details = err.Details
		return apiErr
	case err.StatusCode == common.StatusNotFound:
		return APIErrNotFound
	case err.StatusCode == common.StatusBadRequest:
		apiErr := APIErrCouldNotValidate
		apiErr.Details = err.Details
		return apiErr
	default:
		return APIErrUnspecified
	}
}

// SafeHandler bọc handler với recover để server luôn trả về response
// cho client kể cả khi có panic.
func (h *BaseHandler) SafeHandler(c fiber.Ctx, handler func() error) error {
	defer func() {
		if r := recover(); r != nil {
			// Log stack trace để debug
			debug.PrintStack()

			_ = HandleError(c, common.NewError(
				common.ErrCodeInternalServer,
				fmt.Sprintf("Lỗi hệ thống không mong muốn: %v", r),
				common.StatusInternalServerError,
				nil,
			))
		}
	}()
	return handler()
}
