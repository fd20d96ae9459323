package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/netfoundry/ziti-console/internal/logger"

	"go.mongodb.org/mongo-driver/bson"
)

// Giới hạn phân trang mặc định. Client không thể lấy quá MaxPageSize
// document trong một lần gọi.
const (
	DefaultPageSize int64 = 100
	MaxPageSize     int64 = 100
)

// criteriaOperators là các operator của MongoDB luôn được phép xuất hiện
// trong filter/sort, bất kể cấu hình filterable fields của collection.
var criteriaOperators = map[string]bool{
	"$all":           true,
	"$and":           true,
	"$bitsAllClear":  true,
	"$bitsAllSet":    true,
	"$bitsAnyClear":  true,
	"$bitsAnySet":    true,
	"$comment":       true,
	"$elemMatch":     true,
	"$eq":            true,
	"$exists":        true,
	"$expr":          true,
	"$geoIntersects": true,
	"$geoWithin":     true,
	"$gt":            true,
	"$gte":           true,
	"$in":            true,
	"$jsonSchema":    true,
	"$lt":            true,
	"$lte":           true,
	"$mod":           true,
	"$ne":            true,
	"$near":          true,
	"$nearSphere":    true,
	"$nin":           true,
	"$nor":           true,
	"$not":           true,
	"$or":            true,
	"$regex":         true,
	"$size":          true,
	"$slice":         true,
	"$text":          true,
	"$where":         true,
}

// AllowedFields cấu hình allow-list cho sanitizer của một collection.
// AllowAll bỏ qua kiểm tra field (operator vẫn phải thuộc allow-list cố định).
type AllowedFields struct {
	Filterable []string
	Sortable   []string
	AllowAll   bool
}

func (a AllowedFields) allowsFilter(key string) bool {
	if a.AllowAll {
		return true
	}
	// id luôn là điều kiện hợp lệ: mọi truy vấn nội bộ theo id
	// và sort tie-break đều dựa vào nó
	if key == "id" {
		return true
	}
	for _, f := range a.Filterable {
		if f == key {
			return true
		}
	}
	return false
}

func (a AllowedFields) allowsSort(key string) bool {
	if a.AllowAll {
		return true
	}
	for _, f := range a.Sortable {
		if f == key {
			return true
		}
	}
	// Field được filter thì cũng được sort
	return a.allowsFilter(key)
}

// SanitizeFindArgs sanitize cả ba phần filter/sort/paginate theo allow-list.
// Field không thuộc allow-list bị loại bỏ âm thầm (chỉ log warn),
// request vẫn được xử lý với phần criteria còn lại.
func SanitizeFindArgs(args FindArgs, allowed AllowedFields) FindArgs {
	return FindArgs{
		Filter:    SanitizeCriteria(args.Filter, allowed),
		Sort:      SanitizeSort(args.Sort, allowed),
		Paginate:  SanitizePaginate(args.Paginate),
		ReturnAll: args.ReturnAll,
	}
}

// SanitizeCriteria loại bỏ đệ quy các key không thuộc allow-list khỏi filter.
// Operator ($-prefix thuộc danh sách cố định) luôn được giữ; value của chúng
// được sanitize tiếp nếu là map hoặc mảng ($and/$or/$nor).
func SanitizeCriteria(criteria Document, allowed AllowedFields) Document {
	sanitized := Document{}
	if criteria == nil {
		return sanitized
	}

	for key, value := range criteria {
		isOperator := strings.HasPrefix(key, "$") && criteriaOperators[key]
		if !isOperator && !allowed.allowsFilter(key) {
			logger.GetAppLogger().WithField("property", key).
				Warn("Loại bỏ property không được phép khỏi criteria")
			continue
		}
		sanitized[key] = sanitizeCriteriaValue(value, allowed, isOperator)
	}
	return sanitized
}

// sanitizeCriteriaValue sanitize value của một key đã được giữ lại.
// Map lồng nhau được sanitize đệ quy trừ khi key cha là operator có value
// không phải điều kiện theo field ($elemMatch, $not, ...): khi đó chỉ
// giữ các key operator bên trong, các key field vẫn đi qua allow-list.
func sanitizeCriteriaValue(value any, allowed AllowedFields, parentIsOperator bool) any {
	switch v := value.(type) {
	case Document:
		return sanitizeNestedMap(v, allowed)
	case map[string]interface{}:
		return sanitizeNestedMap(v, allowed)
	case []interface{}:
		return sanitizeCriteriaSlice(v, allowed, parentIsOperator)
	case bson.A:
		return sanitizeCriteriaSlice(v, allowed, parentIsOperator)
	default:
		// Giá trị scalar giữ nguyên
		return v
	}
}

// sanitizeNestedMap giữ lại operator và field được phép trong map lồng nhau.
func sanitizeNestedMap(m map[string]interface{}, allowed AllowedFields) Document {
	out := Document{}
	for key, value := range m {
		isOperator := strings.HasPrefix(key, "$") && criteriaOperators[key]
		if !isOperator && !allowed.allowsFilter(key) {
			logger.GetAppLogger().WithField("property", key).
				Warn("Loại bỏ property không được phép khỏi criteria")
			continue
		}
		out[key] = sanitizeCriteriaValue(value, allowed, isOperator)
	}
	return out
}

// sanitizeCriteriaSlice sanitize mảng criteria con của $and/$or/$nor.
// Mảng không nằm dưới operator (ví dụ value so sánh trực tiếp) giữ nguyên.
func sanitizeCriteriaSlice(items []interface{}, allowed AllowedFields, parentIsOperator bool) []interface{} {
	if !parentIsOperator {
		return items
	}
	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := toDocument(item); ok {
			out = append(out, SanitizeCriteria(m, allowed))
		} else {
			out = append(out, item)
		}
	}
	return out
}

func toDocument(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]interface{}:
		return Document(m), true
	default:
		return nil, false
	}
}

// SanitizeSort loại bỏ các key không được phép sort và luôn thêm id: 1
// vào cuối làm tie-break để thứ tự phân trang ổn định.
func SanitizeSort(sort bson.D, allowed AllowedFields) bson.D {
	sanitized := bson.D{}
	hasID := false
	for _, field := range sort {
		if !allowed.allowsSort(field.Key) {
			logger.GetAppLogger().WithField("property", field.Key).
				Warn("Loại bỏ property không được phép khỏi sort")
			continue
		}
		if field.Key == "id" {
			hasID = true
		}
		sanitized = append(sanitized, field)
	}
	if !hasID {
		sanitized = append(sanitized, bson.E{Key: "id", Value: 1})
	}
	return sanitized
}

// SanitizePaginate clamp skip và limit về giới hạn cho phép.
// Limit mặc định DefaultPageSize, tối đa MaxPageSize, tối thiểu 1.
// Skip mặc định 0, không âm.
func SanitizePaginate(p Paginate) Paginate {
	limit := p.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if limit < 1 {
		limit = 1
	}

	skip := p.Skip
	if skip < 0 {
		skip = 0
	}

	return Paginate{Skip: skip, Limit: limit}
}

// ParseSortJSON parse chuỗi JSON sort từ query param thành bson.D,
// giữ nguyên thứ tự key client gửi lên (map của Go không giữ thứ tự
// nên phải đọc từng token).
func ParseSortJSON(raw string) (bson.D, error) {
	if raw == "" {
		return bson.D{}, nil
	}

	decoder := json.NewDecoder(strings.NewReader(raw))
	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("sort phải là một JSON object")
	}

	sort := bson.D{}
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyToken.(string)
		if !ok {
			continue
		}
		var value any
		if err := decoder.Decode(&value); err != nil {
			return nil, err
		}
		direction := 1
		if num, ok := value.(float64); ok && num < 0 {
			direction = -1
		}
		sort = append(sort, bson.E{Key: key, Value: direction})
	}
	return sort, nil
}
