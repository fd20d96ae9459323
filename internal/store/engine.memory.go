package store

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/netfoundry/ziti-console/internal/common"
	"github.com/netfoundry/ziti-console/internal/utility"

	"go.mongodb.org/mongo-driver/bson"
)

// MemoryEngine là implementation in-process của Engine, dùng cho test
// và cho chế độ chạy embedded không cần MongoDB.
// Hỗ trợ subset operator: $eq, $ne, $gt, $gte, $lt, $lte, $in, $nin,
// $exists, $and, $or, $regex. TTL được bỏ qua.
//
// Nhiều MemoryEngine chia sẻ một MemoryDatabase để các truy vấn join
// nhìn thấy collection của nhau.
type MemoryEngine struct {
	db             *MemoryDatabase
	collectionName string
}

// MemoryDatabase chứa các collection in-memory, tương đương *mongo.Database.
type MemoryDatabase struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	docs   []Document
	unique []UniqueField
}

// NewMemoryDatabase tạo database in-memory rỗng.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		collections: make(map[string]*memoryCollection),
	}
}

// NewMemoryEngine tạo engine cho một collection trong db.
func NewMemoryEngine(db *MemoryDatabase, collectionName string) *MemoryEngine {
	return &MemoryEngine{
		db:             db,
		collectionName: collectionName,
	}
}

// CollectionName trả về tên collection engine đang quản lý.
func (e *MemoryEngine) CollectionName() string {
	return e.collectionName
}

// getCollection tạo collection nếu chưa có. Chỉ gọi khi đang giữ write lock;
// đường đọc dùng docsOf để không ghi vào map dưới read lock.
func (d *MemoryDatabase) getCollection(name string) *memoryCollection {
	if col, ok := d.collections[name]; ok {
		return col
	}
	col := &memoryCollection{}
	d.collections[name] = col
	return col
}

// docsOf trả về documents của collection nếu đã tồn tại, không tạo mới.
// Caller phải đang giữ lock.
func (d *MemoryDatabase) docsOf(name string) []Document {
	if col, ok := d.collections[name]; ok {
		return col.docs
	}
	return nil
}

// Initialize tạo collection và ghi nhận unique fields để enforce khi insert.
func (e *MemoryEngine) Initialize(ctx context.Context, opts InitOptions) error {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	col := e.db.getCollection(e.collectionName)
	col.unique = opts.UniqueFields
	return nil
}

// Destroy xóa collection.
func (e *MemoryEngine) Destroy(ctx context.Context) error {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	delete(e.db.collections, e.collectionName)
	return nil
}

// InsertOne ghi document, enforce unique fields giống unique index của MongoDB
// (partial: chỉ xét các document có đủ field của index).
func (e *MemoryEngine) InsertOne(ctx context.Context, doc Document) error {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	col := e.db.getCollection(e.collectionName)
	for _, fields := range col.unique {
		if violatesUnique(col.docs, doc, fields) {
			return common.NewDuplicateError(e.collectionName, fields)
		}
	}

	col.docs = append(col.docs, cloneDoc(doc))
	return nil
}

// violatesUnique kiểm tra doc có trùng bộ giá trị unique với document nào
// đã tồn tại không. Document thiếu field của index không tham gia kiểm tra.
func violatesUnique(docs []Document, doc Document, fields UniqueField) bool {
	values := make([]any, len(fields))
	for i, field := range fields {
		value, ok := utility.GetPath(doc, field)
		if !ok {
			return false
		}
		values[i] = value
	}

	for _, existing := range docs {
		match := true
		for i, field := range fields {
			existingValue, ok := utility.GetPath(existing, field)
			if !ok || !looseEqual(existingValue, values[i]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// UpdateOne thay thế document đầu tiên khớp filter.
func (e *MemoryEngine) UpdateOne(ctx context.Context, filter Document, doc Document) (int64, error) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	col := e.db.getCollection(e.collectionName)
	for i, existing := range col.docs {
		if matchDocument(existing, filter) {
			col.docs[i] = cloneDoc(doc)
			return 1, nil
		}
	}
	return 0, nil
}

// RemoveOne xóa document đầu tiên khớp criteria.
func (e *MemoryEngine) RemoveOne(ctx context.Context, criteria Document) (int64, error) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	col := e.db.getCollection(e.collectionName)
	for i, existing := range col.docs {
		if matchDocument(existing, criteria) {
			col.docs = append(col.docs[:i], col.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// RemoveMany xóa tất cả document khớp criteria.
func (e *MemoryEngine) RemoveMany(ctx context.Context, criteria Document) (int64, error) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	col := e.db.getCollection(e.collectionName)
	kept := col.docs[:0]
	var removed int64
	for _, existing := range col.docs {
		if matchDocument(existing, criteria) {
			removed++
			continue
		}
		kept = append(kept, existing)
	}
	col.docs = kept
	return removed, nil
}

// Find trả về danh sách document theo filter/sort/paginate.
func (e *MemoryEngine) Find(ctx context.Context, args FindArgs) ([]Document, error) {
	e.db.mu.RLock()
	defer e.db.mu.RUnlock()

	matched := []Document{}
	for _, existing := range e.db.docsOf(e.collectionName) {
		if matchDocument(existing, args.Filter) {
			matched = append(matched, cloneDoc(existing))
		}
	}

	sortDocuments(matched, args.Sort)
	if args.ReturnAll {
		return matched, nil
	}
	return paginateDocuments(matched, args.Paginate), nil
}

// FindOne trả về document đầu tiên khớp filter.
func (e *MemoryEngine) FindOne(ctx context.Context, filter Document) (Document, error) {
	e.db.mu.RLock()
	defer e.db.mu.RUnlock()

	for _, existing := range e.db.docsOf(e.collectionName) {
		if matchDocument(existing, filter) {
			return cloneDoc(existing), nil
		}
	}
	return nil, common.ErrNotFound
}

// Count đếm số document khớp filter.
func (e *MemoryEngine) Count(ctx context.Context, filter Document) (int64, error) {
	e.db.mu.RLock()
	defer e.db.mu.RUnlock()

	var count int64
	for _, existing := range e.db.docsOf(e.collectionName) {
		if matchDocument(existing, filter) {
			count++
		}
	}
	return count, nil
}

// InsertArraySubDocument push một phần tử vào array property của
// document đầu tiên khớp mainCriteria.
func (e *MemoryEngine) InsertArraySubDocument(ctx context.Context, mainCriteria Document, prop string, sub any) error {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	col := e.db.getCollection(e.collectionName)
	for _, existing := range col.docs {
		if !matchDocument(existing, mainCriteria) {
			continue
		}
		arr := toSlice(existing[prop])
		existing[prop] = append(arr, utility.DeepCloneValue(sub))
		return nil
	}
	return nil
}

// RemoveArraySubDocument pull các phần tử khớp pullCriteria khỏi array property.
func (e *MemoryEngine) RemoveArraySubDocument(ctx context.Context, mainCriteria Document, prop string, pullCriteria any, multi bool) (int64, error) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	col := e.db.getCollection(e.collectionName)
	var modified int64
	for _, existing := range col.docs {
		if !matchDocument(existing, mainCriteria) {
			continue
		}
		arr := toSlice(existing[prop])
		kept := make([]any, 0, len(arr))
		changed := false
		for _, item := range arr {
			if pullMatches(item, pullCriteria) {
				changed = true
				continue
			}
			kept = append(kept, item)
		}
		if changed {
			existing[prop] = kept
			modified++
		}
		if !multi {
			break
		}
	}
	return modified, nil
}

// pullMatches so khớp một phần tử với pull criteria.
// Criteria dạng map so khớp theo field, giá trị scalar so sánh bằng.
func pullMatches(item any, pullCriteria any) bool {
	criteria, ok := toDocument(pullCriteria)
	if !ok {
		return looseEqual(item, pullCriteria)
	}
	itemDoc, ok := toDocument(item)
	if !ok {
		return false
	}
	return matchDocument(itemDoc, criteria)
}

// FindArraySubDocuments unwind array property của các document khớp mainCriteria
// và lọc các phần tử theo args.
func (e *MemoryEngine) FindArraySubDocuments(ctx context.Context, mainCriteria Document, prop string, args FindArgs) ([]Document, error) {
	e.db.mu.RLock()
	defer e.db.mu.RUnlock()

	matched := []Document{}
	for _, existing := range e.db.docsOf(e.collectionName) {
		if !matchDocument(existing, mainCriteria) {
			continue
		}
		for _, item := range toSlice(existing[prop]) {
			sub, ok := toDocument(item)
			if !ok {
				continue
			}
			if matchDocument(sub, args.Filter) {
				matched = append(matched, cloneDoc(sub))
			}
		}
	}

	sortDocuments(matched, args.Sort)
	return paginateDocuments(matched, args.Paginate), nil
}

// FindOneArraySubDocument trả về phần tử đầu tiên của array property khớp filter.
func (e *MemoryEngine) FindOneArraySubDocument(ctx context.Context, mainCriteria Document, prop string, filter Document) (Document, error) {
	docs, err := e.FindArraySubDocuments(ctx, mainCriteria, prop, FindArgs{
		Filter:   filter,
		Paginate: Paginate{Skip: 0, Limit: 1},
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.ErrNotFound
	}
	return docs[0], nil
}

// UpdateArraySubDocument thay thế phần tử idProp=id trong array property.
func (e *MemoryEngine) UpdateArraySubDocument(ctx context.Context, mainCriteria Document, prop string, idProp string, id any, sub Document) (int64, error) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	col := e.db.getCollection(e.collectionName)
	for _, existing := range col.docs {
		if !matchDocument(existing, mainCriteria) {
			continue
		}
		arr := toSlice(existing[prop])
		for i, item := range arr {
			itemDoc, ok := toDocument(item)
			if !ok {
				continue
			}
			if looseEqual(itemDoc[idProp], id) {
				arr[i] = cloneDoc(sub)
				existing[prop] = arr
				return 1, nil
			}
		}
	}
	return 0, nil
}

// FindFilteredByIDArraySubDocument mô phỏng join $lookup: document của
// collection này được giữ lại nếu giá trị tại localIDProp giao với giá trị
// tại foreignArrayProp của một document foreign có foreignIDProp = foreignID.
// Cả hai phía đều có thể là scalar hoặc array, giống match của $lookup.
func (e *MemoryEngine) FindFilteredByIDArraySubDocument(ctx context.Context, localIDProp string, foreignCollection string, foreignIDProp string, foreignID any, foreignArrayProp string, args FindArgs) ([]Document, error) {
	e.db.mu.RLock()

	foreignValues := []any{}
	for _, foreignDoc := range e.db.docsOf(foreignCollection) {
		value, _ := utility.GetPath(foreignDoc, foreignIDProp)
		if !looseEqual(value, foreignID) {
			continue
		}
		foreignValues = append(foreignValues, scalarOrElements(foreignDoc[foreignArrayProp])...)
	}

	matched := []Document{}
	for _, existing := range e.db.docsOf(e.collectionName) {
		if !valuesOverlap(scalarOrElements(existing[localIDProp]), foreignValues) {
			continue
		}
		if matchDocument(existing, args.Filter) {
			matched = append(matched, cloneDoc(existing))
		}
	}
	e.db.mu.RUnlock()

	sortDocuments(matched, args.Sort)
	if args.ReturnAll {
		return matched, nil
	}
	return paginateDocuments(matched, args.Paginate), nil
}

// FindFilteredByForeignIDArraySubDocument lấy danh sách id từ foreignResultProp
// của các document bên foreign collection khớp điều kiện, rồi Find theo id $in.
func (e *MemoryEngine) FindFilteredByForeignIDArraySubDocument(ctx context.Context, foreignCollection string, foreignArrayProp string, foreignArrayPropID any, foreignResultProp string, args FindArgs) ([]Document, error) {
	e.db.mu.RLock()
	ids := []any{}
	seen := map[any]bool{}
	for _, foreignDoc := range e.db.docsOf(foreignCollection) {
		found := false
		for _, member := range toSlice(foreignDoc[foreignArrayProp]) {
			if looseEqual(member, foreignArrayPropID) {
				found = true
				break
			}
		}
		if !found && !looseEqual(foreignDoc[foreignArrayProp], foreignArrayPropID) {
			continue
		}
		for _, id := range toSlice(foreignDoc[foreignResultProp]) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	e.db.mu.RUnlock()

	filter := Document{"$and": []any{
		Document{"id": Document{"$in": ids}},
		orEmptyFilter(args.Filter),
	}}

	return e.Find(ctx, FindArgs{
		Filter:    filter,
		Sort:      args.Sort,
		Paginate:  args.Paginate,
		ReturnAll: args.ReturnAll,
	})
}

// ====================================
// FILTER MATCHING
// ====================================

// matchDocument đánh giá filter trên một document.
// Key top-level là field path (dotted) hoặc operator logic ($and/$or).
func matchDocument(doc Document, filter Document) bool {
	for key, condition := range filter {
		switch key {
		case "$and":
			for _, sub := range toSlice(condition) {
				subFilter, ok := toDocument(sub)
				if !ok || !matchDocument(doc, subFilter) {
					return false
				}
			}
		case "$or":
			matched := false
			for _, sub := range toSlice(condition) {
				subFilter, ok := toDocument(sub)
				if ok && matchDocument(doc, subFilter) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		default:
			value, exists := utility.GetPath(doc, key)
			if !matchField(value, exists, condition) {
				return false
			}
		}
	}
	return true
}

// matchField đánh giá điều kiện trên một field.
// Map chứa toàn key operator là điều kiện so sánh, ngược lại so sánh bằng.
func matchField(value any, exists bool, condition any) bool {
	conditionDoc, ok := toDocument(condition)
	if !ok || !isOperatorDoc(conditionDoc) {
		return exists && (looseEqual(value, condition) || containsEqual(value, condition))
	}

	for op, operand := range conditionDoc {
		if !applyOperator(value, exists, op, operand) {
			return false
		}
	}
	return true
}

func isOperatorDoc(doc Document) bool {
	if len(doc) == 0 {
		return false
	}
	for key := range doc {
		if !strings.HasPrefix(key, "$") {
			return false
		}
	}
	return true
}

func applyOperator(value any, exists bool, op string, operand any) bool {
	switch op {
	case "$eq":
		return exists && looseEqual(value, operand)
	case "$ne":
		return !exists || !looseEqual(value, operand)
	case "$exists":
		want, _ := operand.(bool)
		return exists == want
	case "$gt":
		cmp, ok := compareValues(value, operand)
		return exists && ok && cmp > 0
	case "$gte":
		cmp, ok := compareValues(value, operand)
		return exists && ok && cmp >= 0
	case "$lt":
		cmp, ok := compareValues(value, operand)
		return exists && ok && cmp < 0
	case "$lte":
		cmp, ok := compareValues(value, operand)
		return exists && ok && cmp <= 0
	case "$in":
		for _, item := range toSlice(operand) {
			if looseEqual(value, item) || containsEqual(value, item) {
				return true
			}
		}
		return false
	case "$nin":
		for _, item := range toSlice(operand) {
			if looseEqual(value, item) || containsEqual(value, item) {
				return false
			}
		}
		return true
	case "$regex":
		pattern, ok := operand.(string)
		if !ok || !exists {
			return false
		}
		str, ok := value.(string)
		if !ok {
			return false
		}
		matched, err := regexp.MatchString(pattern, str)
		return err == nil && matched
	default:
		// Operator không hỗ trợ: không khớp để lộ rõ hành vi thiếu trong test
		return false
	}
}

// containsEqual mô phỏng match mảng của MongoDB: điều kiện scalar khớp
// nếu mảng chứa phần tử bằng giá trị đó.
func containsEqual(value any, condition any) bool {
	for _, item := range toSlice(value) {
		if looseEqual(item, condition) {
			return true
		}
	}
	return false
}

// looseEqual so sánh hai giá trị, coi các kiểu số là tương đương
// (JSON decode ra float64, BSON có thể ra int32/int64).
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	aNum, aOk := toFloat(a)
	bNum, bOk := toFloat(b)
	if aOk && bOk {
		return aNum == bNum
	}
	return a == b
}

func compareValues(a, b any) (int, bool) {
	aNum, aOk := toFloat(a)
	bNum, bOk := toFloat(b)
	if aOk && bOk {
		switch {
		case aNum < bNum:
			return -1, true
		case aNum > bNum:
			return 1, true
		default:
			return 0, true
		}
	}

	aStr, aOk := a.(string)
	bStr, bOk := b.(string)
	if aOk && bOk {
		return strings.Compare(aStr, bStr), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// scalarOrElements trả về các phần tử nếu v là array, ngược lại chính v.
func scalarOrElements(v any) []any {
	if items := toSlice(v); items != nil {
		return items
	}
	if v == nil {
		return nil
	}
	return []any{v}
}

func valuesOverlap(a, b []any) bool {
	for _, x := range a {
		for _, y := range b {
			if looseEqual(x, y) {
				return true
			}
		}
	}
	return false
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case bson.A:
		return []any(s)
	default:
		return nil
	}
}

// sortDocuments sort ổn định theo các key của sort spec, theo đúng thứ tự khai báo.
func sortDocuments(docs []Document, sortSpec bson.D) {
	if len(sortSpec) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, field := range sortSpec {
			direction := 1
			if num, ok := toFloat(field.Value); ok && num < 0 {
				direction = -1
			}
			aVal, _ := utility.GetPath(docs[i], field.Key)
			bVal, _ := utility.GetPath(docs[j], field.Key)
			cmp, ok := compareValues(aVal, bVal)
			if !ok || cmp == 0 {
				continue
			}
			return cmp*direction < 0
		}
		return false
	})
}

func paginateDocuments(docs []Document, p Paginate) []Document {
	skip := p.Skip
	if skip > int64(len(docs)) {
		return []Document{}
	}
	docs = docs[skip:]
	if p.Limit > 0 && p.Limit < int64(len(docs)) {
		docs = docs[:p.Limit]
	}
	return docs
}

func cloneDoc(doc Document) Document {
	return Document(utility.DeepCloneMap(doc))
}
