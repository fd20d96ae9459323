package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/netfoundry/ziti-console/internal/common"
)

func newTestEngine(t *testing.T, collection string, opts InitOptions) (*MemoryEngine, *MemoryDatabase) {
	t.Helper()
	db := NewMemoryDatabase()
	engine := NewMemoryEngine(db, collection)
	require.NoError(t, engine.Initialize(context.Background(), opts))
	return engine, db
}

func TestMemoryEngineInsertFind(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, "identities", InitOptions{})

	require.NoError(t, engine.InsertOne(ctx, Document{"id": "1", "name": "alice"}))
	require.NoError(t, engine.InsertOne(ctx, Document{"id": "2", "name": "bob"}))

	t.Run("FindOne theo field", func(t *testing.T) {
		doc, err := engine.FindOne(ctx, Document{"name": "alice"})
		require.NoError(t, err)
		assert.Equal(t, "1", doc["id"])
	})

	t.Run("FindOne không khớp trả về ErrNotFound", func(t *testing.T) {
		_, err := engine.FindOne(ctx, Document{"name": "carol"})
		assert.True(t, errors.Is(err, common.ErrNotFound))
	})

	t.Run("Find trả về bản sao, sửa kết quả không ảnh hưởng dữ liệu", func(t *testing.T) {
		docs, err := engine.Find(ctx, FindArgs{ReturnAll: true})
		require.NoError(t, err)
		require.Len(t, docs, 2)

		docs[0]["name"] = "mutated"
		fresh, err := engine.FindOne(ctx, Document{"id": docs[0]["id"]})
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", fresh["name"])
	})

	t.Run("Count theo filter", func(t *testing.T) {
		count, err := engine.Count(ctx, Document{"name": "bob"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestMemoryEngineUniqueEnforcement(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, "roles", InitOptions{
		UniqueFields: []UniqueField{Unique("name")},
	})

	require.NoError(t, engine.InsertOne(ctx, Document{"id": "1", "name": "admin"}))

	t.Run("trùng giá trị unique trả về 409 kèm details", func(t *testing.T) {
		err := engine.InsertOne(ctx, Document{"id": "2", "name": "admin"})
		require.Error(t, err)

		var customErr *common.Error
		require.True(t, errors.As(err, &customErr))
		assert.Equal(t, common.StatusConflict, customErr.StatusCode)

		details, ok := customErr.Details.(common.DuplicateDetails)
		require.True(t, ok)
		assert.Equal(t, "roles", details.Collection)
		assert.Equal(t, []string{"name"}, details.Fields)
	})

	t.Run("document thiếu field unique không tham gia kiểm tra", func(t *testing.T) {
		assert.NoError(t, engine.InsertOne(ctx, Document{"id": "3"}))
		assert.NoError(t, engine.InsertOne(ctx, Document{"id": "4"}))
	})
}

func TestMemoryEngineCompositeUnique(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, "crypto", InitOptions{
		UniqueFields: []UniqueField{Unique("key", "iv")},
	})

	require.NoError(t, engine.InsertOne(ctx, Document{"id": "1", "key": "k1", "iv": "v1"}))
	assert.NoError(t, engine.InsertOne(ctx, Document{"id": "2", "key": "k1", "iv": "v2"}),
		"chỉ trùng một phần của composite index thì không vi phạm")
	assert.Error(t, engine.InsertOne(ctx, Document{"id": "3", "key": "k1", "iv": "v1"}))
}

func TestMemoryEngineOperators(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, "items", InitOptions{})

	require.NoError(t, engine.InsertOne(ctx, Document{"id": "1", "n": 1, "tags": []any{"x", "y"}}))
	require.NoError(t, engine.InsertOne(ctx, Document{"id": "2", "n": 5}))
	require.NoError(t, engine.InsertOne(ctx, Document{"id": "3", "n": 10, "name": "gateway-3"}))

	cases := []struct {
		name   string
		filter Document
		want   []string
	}{
		{"$gt", Document{"n": Document{"$gt": 4}}, []string{"2", "3"}},
		{"$gte", Document{"n": Document{"$gte": 5}}, []string{"2", "3"}},
		{"$lt", Document{"n": Document{"$lt": 5}}, []string{"1"}},
		{"$ne", Document{"n": Document{"$ne": 5}}, []string{"1", "3"}},
		{"$in", Document{"id": Document{"$in": []any{"1", "3"}}}, []string{"1", "3"}},
		{"$nin", Document{"id": Document{"$nin": []any{"1", "3"}}}, []string{"2"}},
		{"$exists true", Document{"name": Document{"$exists": true}}, []string{"3"}},
		{"$exists false", Document{"name": Document{"$exists": false}}, []string{"1", "2"}},
		{"$regex", Document{"name": Document{"$regex": "^gateway"}}, []string{"3"}},
		{"array chứa giá trị", Document{"tags": "x"}, []string{"1"}},
		{"$and", Document{"$and": []any{Document{"n": Document{"$gt": 1}}, Document{"n": Document{"$lt": 10}}}}, []string{"2"}},
		{"$or", Document{"$or": []any{Document{"n": 1}, Document{"n": 10}}}, []string{"1", "3"}},
		{"so sánh số khác kiểu", Document{"n": float64(5)}, []string{"2"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			docs, err := engine.Find(ctx, FindArgs{
				Filter:    tc.filter,
				Sort:      sortByID(),
				ReturnAll: true,
			})
			require.NoError(t, err)

			ids := make([]string, 0, len(docs))
			for _, doc := range docs {
				ids = append(ids, doc["id"].(string))
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestMemoryEngineSortAndPaginate(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, "items", InitOptions{})

	require.NoError(t, engine.InsertOne(ctx, Document{"id": "1", "rank": 3}))
	require.NoError(t, engine.InsertOne(ctx, Document{"id": "2", "rank": 1}))
	require.NoError(t, engine.InsertOne(ctx, Document{"id": "3", "rank": 2}))

	t.Run("sort giảm dần", func(t *testing.T) {
		docs, err := engine.Find(ctx, FindArgs{
			Sort:      sortBy("rank", -1),
			ReturnAll: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "1", docs[0]["id"])
		assert.Equal(t, "2", docs[2]["id"])
	})

	t.Run("skip và limit", func(t *testing.T) {
		docs, err := engine.Find(ctx, FindArgs{
			Sort:     sortBy("rank", 1),
			Paginate: Paginate{Skip: 1, Limit: 1},
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "3", docs[0]["id"])
	})

	t.Run("skip vượt số document trả về rỗng", func(t *testing.T) {
		docs, err := engine.Find(ctx, FindArgs{
			Paginate: Paginate{Skip: 100, Limit: 10},
		})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestMemoryEngineArraySubDocuments(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, "sessions", InitOptions{})

	require.NoError(t, engine.InsertOne(ctx, Document{"id": "s1", "token": "t1"}))

	main := Document{"id": "s1"}
	require.NoError(t, engine.InsertArraySubDocument(ctx, main, "networkSessions",
		Document{"id": "ns1", "token": "nt1"}))
	require.NoError(t, engine.InsertArraySubDocument(ctx, main, "networkSessions",
		Document{"id": "ns2", "token": "nt2"}))

	t.Run("liệt kê sub-document", func(t *testing.T) {
		docs, err := engine.FindArraySubDocuments(ctx, main, "networkSessions", FindArgs{
			Sort:     sortByID(),
			Paginate: Paginate{Limit: 10},
		})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("tìm một sub-document", func(t *testing.T) {
		doc, err := engine.FindOneArraySubDocument(ctx, main, "networkSessions", Document{"id": "ns2"})
		require.NoError(t, err)
		assert.Equal(t, "nt2", doc["token"])
	})

	t.Run("update sub-document theo id", func(t *testing.T) {
		modified, err := engine.UpdateArraySubDocument(ctx, main, "networkSessions", "id", "ns1",
			Document{"id": "ns1", "token": "updated"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), modified)

		doc, err := engine.FindOneArraySubDocument(ctx, main, "networkSessions", Document{"id": "ns1"})
		require.NoError(t, err)
		assert.Equal(t, "updated", doc["token"])
	})

	t.Run("pull sub-document", func(t *testing.T) {
		modified, err := engine.RemoveArraySubDocument(ctx, main, "networkSessions",
			Document{"id": "ns1"}, false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), modified)

		_, err = engine.FindOneArraySubDocument(ctx, main, "networkSessions", Document{"id": "ns1"})
		assert.True(t, errors.Is(err, common.ErrNotFound))
	})

	t.Run("pull không khớp gì trả về 0", func(t *testing.T) {
		modified, err := engine.RemoveArraySubDocument(ctx, main, "networkSessions",
			Document{"id": "missing"}, false)
		require.NoError(t, err)
		assert.Equal(t, int64(0), modified)
	})
}

func TestUniqueIndexName(t *testing.T) {
	assert.Equal(t, "u_roles#name", UniqueIndexName("roles", Unique("name")))
	assert.Equal(t, "u_crypto#key;iv", UniqueIndexName("crypto", Unique("key", "iv")))
	assert.Equal(t, "u_identities#authenticators.updb.username",
		UniqueIndexName("identities", Unique("authenticators.updb.username")))
}

func TestMemoryEngineJoins(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	identities := NewMemoryEngine(db, "identities")
	roles := NewMemoryEngine(db, "roles")
	require.NoError(t, identities.Initialize(ctx, InitOptions{}))
	require.NoError(t, roles.Initialize(ctx, InitOptions{}))

	require.NoError(t, roles.InsertOne(ctx, Document{"id": "r1", "name": "admin"}))
	require.NoError(t, roles.InsertOne(ctx, Document{"id": "r2", "name": "viewer"}))
	require.NoError(t, identities.InsertOne(ctx, Document{"id": "i1", "name": "alice", "roles": []any{"r1", "r2"}}))
	require.NoError(t, identities.InsertOne(ctx, Document{"id": "i2", "name": "bob", "roles": []any{"r2"}}))
	require.NoError(t, identities.InsertOne(ctx, Document{"id": "i3", "name": "carol"}))

	t.Run("roles của một identity", func(t *testing.T) {
		docs, err := roles.FindFilteredByForeignIDArraySubDocument(ctx,
			"identities", "id", "i1", "roles",
			FindArgs{Sort: sortByID(), Paginate: Paginate{Limit: 10}})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "r1", docs[0]["id"])
		assert.Equal(t, "r2", docs[1]["id"])
	})

	t.Run("identities đang giữ một role", func(t *testing.T) {
		docs, err := identities.FindFilteredByIDArraySubDocument(ctx,
			"roles", "roles", "id", "r2", "id",
			FindArgs{Sort: sortByID(), Paginate: Paginate{Limit: 10}})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "i1", docs[0]["id"])
		assert.Equal(t, "i2", docs[1]["id"])
	})

	t.Run("role không được gán cho ai trả về rỗng", func(t *testing.T) {
		require.NoError(t, roles.InsertOne(ctx, Document{"id": "r3", "name": "unused"}))
		docs, err := identities.FindFilteredByIDArraySubDocument(ctx,
			"roles", "roles", "id", "r3", "id",
			FindArgs{Paginate: Paginate{Limit: 10}})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("pull multi gỡ role khỏi mọi identity", func(t *testing.T) {
		modified, err := identities.RemoveArraySubDocument(ctx, Document{}, "roles", "r2", true)
		require.NoError(t, err)
		assert.Equal(t, int64(2), modified)

		doc, err := identities.FindOne(ctx, Document{"id": "i2"})
		require.NoError(t, err)
		assert.Empty(t, toSlice(doc["roles"]))
	})
}

func TestMemoryEngineConcurrentReadWrite(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	sessions := NewMemoryEngine(db, "sessions")
	crypto := NewMemoryEngine(db, "crypto")

	t.Run("đọc collection chưa khởi tạo trả về rỗng, không tạo collection", func(t *testing.T) {
		docs, err := crypto.Find(ctx, FindArgs{ReturnAll: true})
		require.NoError(t, err)
		assert.Empty(t, docs)

		count, err := crypto.Count(ctx, Document{})
		require.NoError(t, err)
		assert.Zero(t, count)

		db.mu.RLock()
		_, exists := db.collections["crypto"]
		db.mu.RUnlock()
		assert.False(t, exists)
	})

	t.Run("đọc và ghi song song trên nhiều collection", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func(n int) {
				defer wg.Done()
				_ = sessions.InsertOne(ctx, Document{"id": n})
			}(i)
			go func() {
				defer wg.Done()
				_, _ = crypto.Find(ctx, FindArgs{ReturnAll: true})
				_, _ = crypto.FindOne(ctx, Document{"id": "x"})
				_, _ = sessions.Count(ctx, Document{})
				_, _ = sessions.FindArraySubDocuments(ctx, Document{}, "items", FindArgs{Paginate: Paginate{Limit: 1}})
			}()
		}
		wg.Wait()

		count, err := sessions.Count(ctx, Document{})
		require.NoError(t, err)
		assert.Equal(t, int64(8), count)
	})
}

func sortBy(key string, direction int) bson.D {
	return bson.D{{Key: key, Value: direction}}
}

func sortByID() bson.D {
	return sortBy("id", 1)
}
