package utility

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// MapToJSON chuyển đổi map thành chuỗi JSON
// @params - map cần chuyển đổi
// @returns - chuỗi JSON và lỗi nếu có
func MapToJSON(m map[string]interface{}) (string, error) {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("lỗi khi chuyển đổi map thành JSON: %v", err)
	}
	return string(jsonBytes), nil
}

// JSONToMap chuyển đổi chuỗi JSON thành map
// @params - chuỗi JSON cần chuyển đổi
// @returns - map và lỗi nếu có
func JSONToMap(jsonStr string) (map[string]interface{}, error) {
	var result map[string]interface{}
	err := json.Unmarshal([]byte(jsonStr), &result)
	if err != nil {
		return nil, fmt.Errorf("lỗi khi chuyển đổi JSON thành map: %v", err)
	}
	return result, nil
}

// ShallowMerge copy các key của src đè lên dst (không đệ quy).
// Dùng cho update kiểu PUT: giá trị mới thay thế toàn bộ giá trị cũ theo key.
func ShallowMerge(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for key, value := range src {
		dst[key] = value
	}
	return dst
}

// DeepMerge merge đệ quy src vào dst. Khi cả hai phía cùng là map thì merge
// tiếp theo từng key, các trường hợp còn lại giá trị của src thay thế.
// Dùng cho update kiểu PATCH.
func DeepMerge(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for key, srcValue := range src {
		dstValue, exists := dst[key]
		if !exists {
			dst[key] = srcValue
			continue
		}
		dstMap, dstOk := asMap(dstValue)
		srcMap, srcOk := asMap(srcValue)
		if dstOk && srcOk {
			dst[key] = DeepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = srcValue
	}
	return dst
}

// DeepCloneMap clone đệ quy một map, bao gồm map và slice lồng nhau.
// Giá trị scalar được copy theo value.
func DeepCloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for key, value := range m {
		out[key] = DeepCloneValue(value)
	}
	return out
}

// DeepCloneValue clone đệ quy một giá trị bất kỳ.
// Xử lý cả bson.M/bson.A (kết quả decode của driver) lẫn map/slice thường (JSON body).
func DeepCloneValue(v interface{}) interface{} {
	switch value := v.(type) {
	case bson.M:
		return bson.M(DeepCloneMap(value))
	case map[string]interface{}:
		return DeepCloneMap(value)
	case bson.A:
		out := make(bson.A, len(value))
		for i, item := range value {
			out[i] = DeepCloneValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, item := range value {
			out[i] = DeepCloneValue(item)
		}
		return out
	default:
		return value
	}
}

// GetPath lấy giá trị theo đường dẫn dotted (ví dụ "authenticators.updb.username").
// @returns - giá trị và true nếu tồn tại đủ đường dẫn
func GetPath(m map[string]interface{}, path string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}
	current := interface{}(m)
	start := 0
	for i := 0; i <= len(path); i++ {
		if i != len(path) && path[i] != '.' {
			continue
		}
		key := path[start:i]
		start = i + 1
		currentMap, ok := asMap(current)
		if !ok {
			return nil, false
		}
		value, exists := currentMap[key]
		if !exists {
			return nil, false
		}
		current = value
	}
	return current, true
}

// MapContainsKey kiểm tra xem map có chứa key hay không
func MapContainsKey(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	_, exists := m[key]
	return exists
}

// MapIsEmpty kiểm tra xem map có rỗng hay không
func MapIsEmpty(m map[string]interface{}) bool {
	return len(m) == 0
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case bson.M:
		return map[string]interface{}(m), true
	case map[string]interface{}:
		return m, true
	default:
		return nil, false
	}
}
