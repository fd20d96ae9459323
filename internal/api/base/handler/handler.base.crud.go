package basehdl

// Package basehdl - generic CRUD handlers trên BaseStore.
// Mỗi collection được expose qua một BaseHandler; các route sub-item và
// joined-sub-item được tạo từ các factory method nhận tên property.

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/netfoundry/ziti-console/internal/common"
	"github.com/netfoundry/ziti-console/internal/logger"
	"github.com/netfoundry/ziti-console/internal/store"
	"github.com/netfoundry/ziti-console/internal/utility"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson"
)

// BaseHandler cung cấp các endpoint CRUD chung cho một collection.
// BasePath dùng để dựng Location header khi tạo mới.
type BaseHandler struct {
	Store    *store.BaseStore
	BasePath string
}

// NewBaseHandler tạo handler cho một store.
func NewBaseHandler(s *store.BaseStore, basePath string) *BaseHandler {
	return &BaseHandler{
		Store:    s,
		BasePath: basePath,
	}
}

// errBadFindArgs đánh dấu filter hoặc sort không parse được,
// trả về cho client dưới code INVALID_FILTER.
var errBadFindArgs = errors.New("filter hoặc sort không đúng định dạng JSON")

// parseFindArgs đọc filter/sort/limit/skip từ query string.
// filter và sort là JSON; limit và skip là số nguyên.
// Giá trị vượt giới hạn sẽ được sanitizer của store clamp lại.
func (h *BaseHandler) parseFindArgs(c fiber.Ctx) (store.FindArgs, error) {
	args := store.FindArgs{}

	if raw := c.Query("filter"); raw != "" {
		filter, err := utility.JSONToMap(raw)
		if err != nil {
			return args, fmt.Errorf("%w: %v", errBadFindArgs, err)
		}
		args.Filter = filter
	}

	if raw := c.Query("sort"); raw != "" {
		sort, err := store.ParseSortJSON(raw)
		if err != nil {
			return args, fmt.Errorf("%w: %v", errBadFindArgs, err)
		}
		args.Sort = sort
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return args, common.NewError(common.ErrCodeValidationInput,
				"Limit phải là số nguyên", common.StatusBadRequest, nil)
		}
		args.Paginate.Limit = limit
	}

	if raw := c.Query("skip"); raw != "" {
		skip, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return args, common.NewError(common.ErrCodeValidationInput,
				"Skip phải là số nguyên", common.StatusBadRequest, nil)
		}
		args.Paginate.Skip = skip
	}

	return args, nil
}

// respondFindArgsError map lỗi parse find args sang error envelope.
func respondFindArgsError(c fiber.Ctx, err error) error {
	if errors.Is(err, errBadFindArgs) {
		return RespondError(c, common.StatusBadRequest, APIErrInvalidFilter)
	}
	return HandleError(c, err)
}

// parseBody parse JSON body thành Document.
func (h *BaseHandler) parseBody(c fiber.Ctx) (store.Document, error) {
	doc := store.Document{}
	if len(c.Body()) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(c.Body(), &doc); err != nil {
		return nil, common.NewError(common.ErrCodeValidationInput,
			fmt.Sprintf("Dữ liệu gửi lên không đúng định dạng JSON. Chi tiết: %v", err),
			common.StatusBadRequest, nil)
	}
	return doc, nil
}

// GetListOfItems trả về danh sách document theo filter/sort/paginate.
//
// Query params:
// - filter: JSON, các field ngoài allow-list bị loại bỏ
// - sort: JSON, giữ thứ tự key
// - limit, skip: số nguyên, bị clamp về giới hạn cho phép
func (h *BaseHandler) GetListOfItems(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		args, err := h.parseFindArgs(c)
		if err != nil {
			return respondFindArgsError(c, err)
		}

		docs, err := h.Store.Find(c.Context(), args)
		if err != nil {
			return HandleError(c, err)
		}
		return JSONResponse(c, common.StatusOK, SuccessBody(nil, docs))
	})
}

// GetItem trả về một document theo id trong path.
func (h *BaseHandler) GetItem(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		doc, err := h.Store.FindByID(c.Context(), c.Params("id"))
		if err != nil {
			return HandleError(c, err)
		}
		return JSONResponse(c, common.StatusOK, SuccessBody(nil, doc))
	})
}

// CreateItem tạo document mới từ JSON body.
// Thành công trả về 200 với Location header và {meta:{location}, data:{id}}.
func (h *BaseHandler) CreateItem(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		doc, err := h.parseBody(c)
		if err != nil {
			return HandleError(c, err)
		}

		inserted, err := h.Store.InsertOne(c.Context(), doc)
		if err != nil {
			return HandleError(c, err)
		}

		id, _ := inserted["id"].(string)
		location := fmt.Sprintf("%s/%s", h.BasePath, id)
		c.Set("Location", location)

		logger.LogCRUD("create", h.Store.CollectionName(), id, c, nil)
		return JSONResponse(c, common.StatusOK, SuccessBody(
			fiber.Map{"location": location},
			fiber.Map{"id": id},
		))
	})
}

// UpdateItem (PUT) đọc document hiện có, shallow-merge body đè lên
// rồi thay thế toàn bộ. Không tìm thấy trả về 404.
// Hai writer cùng update một document thì bản ghi sau thắng.
func (h *BaseHandler) UpdateItem(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		body, err := h.parseBody(c)
		if err != nil {
			return HandleError(c, err)
		}

		id := c.Params("id")
		existing, err := h.Store.FindByID(c.Context(), id)
		if err != nil {
			return HandleError(c, err)
		}

		merged := utility.ShallowMerge(utility.DeepCloneMap(existing), body)
		if _, err := h.Store.UpdateByID(c.Context(), id, merged); err != nil {
			return HandleError(c, err)
		}

		logger.LogCRUD("update", h.Store.CollectionName(), id, c, nil)
		return JSONResponse(c, common.StatusOK, SuccessBody(nil, fiber.Map{"id": id}))
	})
}

// PatchItem (PATCH) đọc document hiện có, deep-merge body vào
// rồi thay thế. Không tìm thấy trả về 404.
func (h *BaseHandler) PatchItem(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		body, err := h.parseBody(c)
		if err != nil {
			return HandleError(c, err)
		}

		id := c.Params("id")
		existing, err := h.Store.FindByID(c.Context(), id)
		if err != nil {
			return HandleError(c, err)
		}

		merged := utility.DeepMerge(utility.DeepCloneMap(existing), body)
		if _, err := h.Store.UpdateByID(c.Context(), id, merged); err != nil {
			return HandleError(c, err)
		}

		logger.LogCRUD("patch", h.Store.CollectionName(), id, c, nil)
		return JSONResponse(c, common.StatusOK, SuccessBody(nil, fiber.Map{"id": id}))
	})
}

// DeleteItem xóa document theo id. Không có gì để xóa trả về 404.
func (h *BaseHandler) DeleteItem(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		id := c.Params("id")
		removed, err := h.Store.RemoveOne(c.Context(), store.Document{"id": id})
		if err != nil {
			return HandleError(c, err)
		}
		if removed == 0 {
			return RespondError(c, common.StatusNotFound, APIErrNotFound)
		}

		logger.LogCRUD("delete", h.Store.CollectionName(), id, c, nil)
		return JSONResponse(c, common.StatusOK, SuccessBody(nil, nil))
	})
}

// ====================================
// SUB-ITEM HANDLERS (array sub-document)
// ====================================

// GetSubListOfItems trả về danh sách phần tử trong array property của
// document :id, theo filter/sort/paginate.
func (h *BaseHandler) GetSubListOfItems(prop string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return h.SafeHandler(c, func() error {
			args, err := h.parseFindArgs(c)
			if err != nil {
				return respondFindArgsError(c, err)
			}

			docs, err := h.Store.FindArraySubDocuments(c.Context(),
				store.Document{"id": c.Params("id")}, prop, args)
			if err != nil {
				return HandleError(c, err)
			}
			return JSONResponse(c, common.StatusOK, SuccessBody(nil, docs))
		})
	}
}

// GetSubItem trả về một phần tử theo id trong array property của document :id.
func (h *BaseHandler) GetSubItem(prop string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return h.SafeHandler(c, func() error {
			doc, err := h.Store.FindArraySubDocumentByID(c.Context(),
				store.Document{"id": c.Params("id")}, prop, c.Params("subId"))
			if err != nil {
				return HandleError(c, err)
			}
			return JSONResponse(c, common.StatusOK, SuccessBody(nil, doc))
		})
	}
}

// CreateSubItem thêm một phần tử vào array property của document :id.
// Parent không tồn tại trả về 404.
func (h *BaseHandler) CreateSubItem(prop string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return h.SafeHandler(c, func() error {
			body, err := h.parseBody(c)
			if err != nil {
				return HandleError(c, err)
			}

			id := c.Params("id")
			if _, err := h.Store.FindByID(c.Context(), id); err != nil {
				return HandleError(c, err)
			}

			sub, err := h.Store.InsertArraySubDocument(c.Context(),
				store.Document{"id": id}, prop, body)
			if err != nil {
				return HandleError(c, err)
			}

			subDoc, _ := sub.(store.Document)
			subID, _ := subDoc["id"].(string)
			location := fmt.Sprintf("%s/%s/%s/%s", h.BasePath, id, prop, subID)
			c.Set("Location", location)

			return JSONResponse(c, common.StatusOK, SuccessBody(
				fiber.Map{"location": location},
				fiber.Map{"id": subID},
			))
		})
	}
}

// DeleteSubItem xóa phần tử :subId khỏi array property của document :id.
// Không có gì thay đổi trả về 404.
func (h *BaseHandler) DeleteSubItem(prop string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return h.SafeHandler(c, func() error {
			modified, err := h.Store.RemoveArraySubDocument(c.Context(),
				store.Document{"id": c.Params("id")}, prop,
				store.Document{"id": c.Params("subId")})
			if err != nil {
				return HandleError(c, err)
			}
			if modified == 0 {
				return RespondError(c, common.StatusNotFound, APIErrNotFound)
			}
			return JSONResponse(c, common.StatusOK, SuccessBody(nil, nil))
		})
	}
}

// UpdateSubItem thay thế phần tử :subId trong array property của document :id.
func (h *BaseHandler) UpdateSubItem(prop string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return h.SafeHandler(c, func() error {
			body, err := h.parseBody(c)
			if err != nil {
				return HandleError(c, err)
			}

			subID := c.Params("subId")
			body["id"] = subID
			modified, err := h.Store.UpdateArraySubDocument(c.Context(),
				store.Document{"id": c.Params("id")}, prop, "id", subID, body)
			if err != nil {
				return HandleError(c, err)
			}
			if modified == 0 {
				return RespondError(c, common.StatusNotFound, APIErrNotFound)
			}
			return JSONResponse(c, common.StatusOK, SuccessBody(nil, fiber.Map{"id": subID}))
		})
	}
}

// ====================================
// JOINED SUB-ITEM HANDLERS
// (id lưu trong array property của entity cha)
// ====================================

// AddArrayJoinedSubItem gán một entity của foreign store vào array property
// của document :id qua body {"id": "..."}.
//
// - Parent không tồn tại: 404 NOT_FOUND
// - Id không tồn tại bên foreign store: 400 INVALID_ID_SUPPLIED
// - Id đã có trong array: 409 ENTITY_ALREADY_ASSIGNED
func (h *BaseHandler) AddArrayJoinedSubItem(arrayProp string, foreign *store.BaseStore) fiber.Handler {
	return func(c fiber.Ctx) error {
		return h.SafeHandler(c, func() error {
			body, err := h.parseBody(c)
			if err != nil {
				return HandleError(c, err)
			}

			subID, _ := body["id"].(string)
			if subID == "" {
				return RespondError(c, common.StatusBadRequest, APIErrInvalidIDSupplied)
			}

			id := c.Params("id")
			parent, err := h.Store.FindByID(c.Context(), id)
			if err != nil {
				return HandleError(c, err)
			}

			if _, err := foreign.FindByID(c.Context(), subID); err != nil {
				return RespondError(c, common.StatusBadRequest, APIErrInvalidIDSupplied)
			}

			members := toStringSlice(parent[arrayProp])
			if utility.Contains(members, subID) {
				return RespondError(c, common.StatusConflict, APIErrEntityAlreadyAssigned)
			}

			parent[arrayProp] = append(toAnySlice(members), subID)
			if _, err := h.Store.UpdateByID(c.Context(), id, parent); err != nil {
				return HandleError(c, err)
			}

			return JSONResponse(c, common.StatusOK, SuccessBody(nil, fiber.Map{"id": subID}))
		})
	}
}

// DeleteJoinedSubItem gỡ id :subId khỏi array property của document :id.
// Id không có trong array trả về 404.
func (h *BaseHandler) DeleteJoinedSubItem(arrayProp string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return h.SafeHandler(c, func() error {
			id := c.Params("id")
			parent, err := h.Store.FindByID(c.Context(), id)
			if err != nil {
				return HandleError(c, err)
			}

			subID := c.Params("subId")
			members := toStringSlice(parent[arrayProp])
			index := -1
			for i, member := range members {
				if member == subID {
					index = i
					break
				}
			}
			if index < 0 {
				return RespondError(c, common.StatusNotFound, APIErrNotFound)
			}

			members = append(members[:index], members[index+1:]...)
			parent[arrayProp] = toAnySlice(members)
			if _, err := h.Store.UpdateByID(c.Context(), id, parent); err != nil {
				return HandleError(c, err)
			}

			return JSONResponse(c, common.StatusOK, SuccessBody(nil, nil))
		})
	}
}

// DeleteAllJoinedSubItems đặt array property của document :id về mảng rỗng.
func (h *BaseHandler) DeleteAllJoinedSubItems(arrayProp string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return h.SafeHandler(c, func() error {
			id := c.Params("id")
			parent, err := h.Store.FindByID(c.Context(), id)
			if err != nil {
				return HandleError(c, err)
			}

			parent[arrayProp] = []any{}
			if _, err := h.Store.UpdateByID(c.Context(), id, parent); err != nil {
				return HandleError(c, err)
			}

			return JSONResponse(c, common.StatusOK, SuccessBody(nil, nil))
		})
	}
}

// JoinedSubItems trả về các entity của store này có id nằm trong array
// property của document :id bên foreign store (ví dụ: các role của một identity).
func (h *BaseHandler) JoinedSubItems(foreign *store.BaseStore, arrayProp string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return h.SafeHandler(c, func() error {
			args, err := h.parseFindArgs(c)
			if err != nil {
				return respondFindArgsError(c, err)
			}

			if _, err := foreign.FindByID(c.Context(), c.Params("id")); err != nil {
				return HandleError(c, err)
			}

			docs, err := h.Store.FindFilteredByForeignIDArraySubDocument(c.Context(),
				foreign, "id", c.Params("id"), arrayProp, args)
			if err != nil {
				return HandleError(c, err)
			}
			return JSONResponse(c, common.StatusOK, SuccessBody(nil, docs))
		})
	}
}

// JoinedParents trả về các entity của store này có array property chứa
// id :id của foreign store (ví dụ: các identity đang giữ một role).
func (h *BaseHandler) JoinedParents(foreign *store.BaseStore, arrayProp string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return h.SafeHandler(c, func() error {
			args, err := h.parseFindArgs(c)
			if err != nil {
				return respondFindArgsError(c, err)
			}

			if _, err := foreign.FindByID(c.Context(), c.Params("id")); err != nil {
				return HandleError(c, err)
			}

			docs, err := h.Store.FindFilteredByIDArraySubDocument(c.Context(),
				arrayProp, foreign, "id", c.Params("id"), "id", args)
			if err != nil {
				return HandleError(c, err)
			}
			return JSONResponse(c, common.StatusOK, SuccessBody(nil, docs))
		})
	}
}

// toStringSlice chuyển array property về []string, bỏ qua phần tử không phải string.
func toStringSlice(v any) []string {
	out := []string{}
	switch arr := v.(type) {
	case []any:
		for _, item := range arr {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case bson.A:
		for _, item := range arr {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, arr...)
	}
	return out
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
