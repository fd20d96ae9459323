package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSanitizeCriteria(t *testing.T) {
	allowed := AllowedFields{Filterable: []string{"name", "email"}}

	t.Run("giữ field thuộc allow-list", func(t *testing.T) {
		out := SanitizeCriteria(Document{"name": "jsmith"}, allowed)
		assert.Equal(t, Document{"name": "jsmith"}, out)
	})

	t.Run("loại bỏ field ngoài allow-list", func(t *testing.T) {
		out := SanitizeCriteria(Document{"name": "jsmith", "isAdmin": true}, allowed)
		assert.Equal(t, Document{"name": "jsmith"}, out)
		assert.NotContains(t, out, "isAdmin")
	})

	t.Run("id luôn được phép dù không khai báo filterable", func(t *testing.T) {
		out := SanitizeCriteria(Document{"id": "abc"}, allowed)
		assert.Equal(t, Document{"id": "abc"}, out)
	})

	t.Run("operator trong danh sách cố định được giữ", func(t *testing.T) {
		out := SanitizeCriteria(Document{
			"name": Document{"$in": []any{"a", "b"}},
		}, allowed)
		assert.Equal(t, Document{"name": Document{"$in": []any{"a", "b"}}}, out)
	})

	t.Run("key dạng operator nhưng không thuộc danh sách bị loại", func(t *testing.T) {
		out := SanitizeCriteria(Document{"$accumulator": Document{}}, allowed)
		assert.Empty(t, out)
	})

	t.Run("sanitize đệ quy trong mảng của logic operator", func(t *testing.T) {
		out := SanitizeCriteria(Document{
			"$or": []any{
				map[string]interface{}{"name": "a"},
				map[string]interface{}{"secret": "x"},
			},
		}, allowed)

		subs, ok := out["$or"].([]interface{})
		require.True(t, ok)
		require.Len(t, subs, 2)
		assert.Equal(t, Document{"name": "a"}, subs[0])
		assert.Empty(t, subs[1], "field lạ trong nhánh $or phải bị loại")
	})

	t.Run("criteria nil trả về document rỗng", func(t *testing.T) {
		assert.Empty(t, SanitizeCriteria(nil, allowed))
	})

	t.Run("AllowAll bỏ qua kiểm tra field", func(t *testing.T) {
		out := SanitizeCriteria(Document{"anything": 1}, AllowedFields{AllowAll: true})
		assert.Equal(t, Document{"anything": 1}, out)
	})
}

func TestSanitizeSort(t *testing.T) {
	allowed := AllowedFields{Filterable: []string{"name"}, Sortable: []string{"createdAt"}}

	t.Run("luôn thêm id tie-break vào cuối", func(t *testing.T) {
		out := SanitizeSort(bson.D{{Key: "name", Value: -1}}, allowed)
		require.Len(t, out, 2)
		assert.Equal(t, bson.E{Key: "name", Value: -1}, out[0])
		assert.Equal(t, bson.E{Key: "id", Value: 1}, out[1])
	})

	t.Run("không nhân đôi id nếu client đã sort theo id", func(t *testing.T) {
		out := SanitizeSort(bson.D{{Key: "id", Value: -1}}, allowed)
		require.Len(t, out, 1)
		assert.Equal(t, bson.E{Key: "id", Value: -1}, out[0])
	})

	t.Run("field filterable cũng được sort", func(t *testing.T) {
		out := SanitizeSort(bson.D{{Key: "name", Value: 1}, {Key: "createdAt", Value: -1}}, allowed)
		assert.Len(t, out, 3)
	})

	t.Run("field lạ bị loại", func(t *testing.T) {
		out := SanitizeSort(bson.D{{Key: "secret", Value: 1}}, allowed)
		require.Len(t, out, 1)
		assert.Equal(t, "id", out[0].Key)
	})
}

func TestSanitizePaginate(t *testing.T) {
	t.Run("mặc định", func(t *testing.T) {
		out := SanitizePaginate(Paginate{})
		assert.Equal(t, Paginate{Skip: 0, Limit: DefaultPageSize}, out)
	})

	t.Run("limit vượt trần bị clamp", func(t *testing.T) {
		out := SanitizePaginate(Paginate{Limit: 10000})
		assert.Equal(t, MaxPageSize, out.Limit)
	})

	t.Run("limit âm về tối thiểu 1", func(t *testing.T) {
		out := SanitizePaginate(Paginate{Limit: -5})
		assert.Equal(t, int64(1), out.Limit)
	})

	t.Run("skip âm về 0", func(t *testing.T) {
		out := SanitizePaginate(Paginate{Skip: -10, Limit: 20})
		assert.Equal(t, Paginate{Skip: 0, Limit: 20}, out)
	})
}

func TestParseSortJSON(t *testing.T) {
	t.Run("giữ thứ tự key", func(t *testing.T) {
		out, err := ParseSortJSON(`{"name": 1, "createdAt": -1}`)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, bson.E{Key: "name", Value: 1}, out[0])
		assert.Equal(t, bson.E{Key: "createdAt", Value: -1}, out[1])
	})

	t.Run("chuỗi rỗng trả về sort rỗng", func(t *testing.T) {
		out, err := ParseSortJSON("")
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("không phải object là lỗi", func(t *testing.T) {
		_, err := ParseSortJSON(`["name"]`)
		assert.Error(t, err)
	})
}
