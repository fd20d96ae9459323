package router

import (
	"github.com/gofiber/fiber/v3"

	basehdl "github.com/netfoundry/ziti-console/internal/api/base/handler"
	"github.com/netfoundry/ziti-console/internal/api/middleware"
	"github.com/netfoundry/ziti-console/internal/store"
)

// CRUDConfig cấu hình các operation được mở cho mỗi collection.
type CRUDConfig struct {
	List   bool // GET /collection
	Get    bool // GET /collection/:id
	Create bool // POST /collection
	Update bool // PUT /collection/:id
	Patch  bool // PATCH /collection/:id
	Delete bool // DELETE /collection/:id
}

// FullCRUDConfig mở đầy đủ các operation.
var FullCRUDConfig = CRUDConfig{
	List: true, Get: true,
	Create: true, Update: true, Patch: true,
	Delete: true,
}

// RoutePrefix chứa các prefix cơ bản cho API.
type RoutePrefix struct {
	Base string // Prefix cơ bản (/api)
	V1   string // Prefix cho API version 1 (/api/v1)
}

// NewRoutePrefix tạo mới một instance của RoutePrefix với các giá trị mặc định.
func NewRoutePrefix() RoutePrefix {
	base := "/api"
	return RoutePrefix{
		Base: base,
		V1:   base + "/v1",
	}
}

// Router quản lý việc định tuyến cho API.
type Router struct {
	app    *fiber.App
	prefix RoutePrefix
}

// NewRouter tạo mới một instance của Router.
func NewRouter(app *fiber.App) *Router {
	return &Router{
		app:    app,
		prefix: RoutePrefix{},
	}
}

// RegisterCRUDRoutes đăng ký các route CRUD cho một collection dưới group v1.
func (r *Router) RegisterCRUDRoutes(v1 fiber.Router, path string, h *basehdl.BaseHandler, config CRUDConfig) {
	group := v1.Group(path)

	if config.List {
		group.Get("/", h.GetListOfItems)
	}
	if config.Get {
		group.Get("/:id", h.GetItem)
	}
	if config.Create {
		group.Post("/", h.CreateItem)
	}
	if config.Update {
		group.Put("/:id", h.UpdateItem)
	}
	if config.Patch {
		group.Patch("/:id", h.PatchItem)
	}
	if config.Delete {
		group.Delete("/:id", h.DeleteItem)
	}
}

// SetupRoutes thiết lập tất cả các route của ứng dụng trên các store đã dựng.
func SetupRoutes(app *fiber.App, stores *store.Stores) {
	prefix := NewRoutePrefix()
	r := NewRouter(app)

	v1 := app.Group(prefix.V1)
	v1.Use(middleware.RequireJSONBody())

	identities := basehdl.NewBaseHandler(stores.Identities, prefix.V1+"/identities")
	roles := basehdl.NewBaseHandler(stores.Roles, prefix.V1+"/roles")
	enrollments := basehdl.NewBaseHandler(stores.Enrollments, prefix.V1+"/enrollments")
	emailVerifications := basehdl.NewBaseHandler(stores.EmailVerifications, prefix.V1+"/email-verifications")
	crypto := basehdl.NewBaseHandler(stores.Crypto, prefix.V1+"/crypto")
	sessions := basehdl.NewBaseHandler(stores.Sessions.BaseStore, prefix.V1+"/sessions")

	r.RegisterCRUDRoutes(v1, "/identities", identities, FullCRUDConfig)
	r.RegisterCRUDRoutes(v1, "/roles", roles, FullCRUDConfig)
	r.RegisterCRUDRoutes(v1, "/enrollments", enrollments, FullCRUDConfig)
	r.RegisterCRUDRoutes(v1, "/email-verifications", emailVerifications, FullCRUDConfig)
	r.RegisterCRUDRoutes(v1, "/crypto", crypto, FullCRUDConfig)
	r.RegisterCRUDRoutes(v1, "/sessions", sessions, FullCRUDConfig)

	// Quan hệ identity <-> role qua array property "roles" trên identity
	identityRoles := v1.Group("/identities/:id/roles")
	identityRoles.Get("/", roles.JoinedSubItems(stores.Identities, store.RolesProp))
	identityRoles.Post("/", identities.AddArrayJoinedSubItem(store.RolesProp, stores.Roles))
	identityRoles.Delete("/", identities.DeleteAllJoinedSubItems(store.RolesProp))
	identityRoles.Delete("/:subId", identities.DeleteJoinedSubItem(store.RolesProp))

	v1.Get("/roles/:id/identities", identities.JoinedParents(stores.Roles, store.RolesProp))

	// Network session là sub-document array trên session
	networkSessions := v1.Group("/sessions/:id/network-sessions")
	networkSessions.Get("/", sessions.GetSubListOfItems(store.NetworkSessionProp))
	networkSessions.Get("/:subId", sessions.GetSubItem(store.NetworkSessionProp))
	networkSessions.Post("/", sessions.CreateSubItem(store.NetworkSessionProp))
	networkSessions.Put("/:subId", sessions.UpdateSubItem(store.NetworkSessionProp))
	networkSessions.Delete("/:subId", sessions.DeleteSubItem(store.NetworkSessionProp))
}
