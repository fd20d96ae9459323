package store

import (
	"context"
	"fmt"

	"github.com/netfoundry/ziti-console/internal/global"
	"github.com/netfoundry/ziti-console/internal/logger"
)

// RolesProp là tên array property trên identity chứa id các role được gán.
const RolesProp = "roles"

// EngineFactory tạo engine cho một collection. cmd/server truyền factory
// MongoDB, test truyền factory memory engine.
type EngineFactory func(collection string) Engine

// Stores gom tất cả store của ứng dụng, truyền tường minh xuống router
// và handler thay vì dùng singleton.
type Stores struct {
	Identities         *BaseStore
	Roles              *BaseStore
	Enrollments        *BaseStore
	EmailVerifications *BaseStore
	Crypto             *BaseStore
	Sessions           *SessionStore
}

// NewStores dựng các store với cấu hình collection chuẩn của hệ thống
// và nối các observer cascade giữa chúng.
func NewStores(engines EngineFactory) *Stores {
	cols := global.Collections

	stores := &Stores{
		Identities: NewBaseStore(engines(cols.Identities), StoreConfig{
			FilterableFields: []string{"name", "authenticators.updb.username"},
			UniqueFields: []UniqueField{
				Unique("authenticators.updb.username"),
				Unique("authenticators.cert.fingerprint"),
			},
			Validate: validateIdentity,
		}),
		Roles: NewBaseStore(engines(cols.Roles), StoreConfig{
			FilterableFields: []string{"name"},
			UniqueFields:     []UniqueField{Unique("name")},
			Validate:         requireStringFields("name"),
		}),
		Enrollments: NewBaseStore(engines(cols.Enrollments), StoreConfig{
			FilterableFields: []string{"email", "id"},
			UniqueFields:     []UniqueField{Unique("email"), Unique("id")},
			TTLSeconds:       60 * 30, // tự động dọn sau nửa giờ
			Validate:         validateEnrollment,
		}),
		EmailVerifications: NewBaseStore(engines(cols.EmailVerifications), StoreConfig{
			FilterableFields: []string{"id"},
			UniqueFields:     []UniqueField{Unique("id")},
			TTLSeconds:       60 * 30,
		}),
		Crypto: NewBaseStore(engines(cols.Crypto), StoreConfig{
			FilterableFields: []string{"key", "iv"},
			UniqueFields:     []UniqueField{Unique("key"), Unique("iv")},
			Validate:         requireStringFields("key", "iv"),
		}),
		Sessions: NewSessionStore(engines(cols.Sessions), StoreConfig{
			FilterableFields: []string{"token"},
			UniqueFields:     []UniqueField{Unique("token")},
			TTLSeconds:       60 * 30, // flush session sau nửa giờ
		}),
	}

	// Xóa role thì gỡ id của nó khỏi array roles của mọi identity
	identities := stores.Identities
	stores.Roles.Subscribe(EventRemove(cols.Roles), func(event string, doc Document) {
		if doc == nil {
			return
		}
		roleID, _ := doc["id"].(string)
		if roleID == "" {
			return
		}
		if _, err := identities.RemoveSubDocumentFromAll(context.Background(), RolesProp, roleID); err != nil {
			logger.GetAppLogger().WithError(err).WithField("roleId", roleID).
				Error("Không gỡ được role khỏi các identity sau khi xóa")
		}
	})

	return stores
}

// InitializeAll khởi tạo collection và index cho tất cả store.
func (s *Stores) InitializeAll(ctx context.Context) error {
	for name, st := range s.Map() {
		if err := st.Initialize(ctx); err != nil {
			return fmt.Errorf("khởi tạo collection %s thất bại: %w", name, err)
		}
	}
	return nil
}

// Map trả về các store theo tên collection, dùng cho registry và seeding.
func (s *Stores) Map() map[string]*BaseStore {
	cols := global.Collections
	return map[string]*BaseStore{
		cols.Identities:         s.Identities,
		cols.Roles:              s.Roles,
		cols.Enrollments:        s.Enrollments,
		cols.EmailVerifications: s.EmailVerifications,
		cols.Crypto:             s.Crypto,
		cols.Sessions:           s.Sessions.BaseStore,
	}
}

// validateIdentity yêu cầu identity có name là string không rỗng.
func validateIdentity(doc Document) ValidationResult {
	return requireStringFields("name")(doc)
}

// validateEnrollment yêu cầu email hợp lệ.
func validateEnrollment(doc Document) ValidationResult {
	email, _ := doc["email"].(string)
	if email == "" {
		return invalidResult("email", "email là bắt buộc")
	}
	if global.Validate != nil {
		if err := global.Validate.Var(email, "simple_email"); err != nil {
			return invalidResult("email", "email không đúng định dạng")
		}
	}
	return ValidationResult{IsValid: true}
}

// requireStringFields tạo validate hook yêu cầu các field là string không rỗng.
func requireStringFields(fields ...string) ValidateFunc {
	return func(doc Document) ValidationResult {
		for _, field := range fields {
			value, _ := doc[field].(string)
			if value == "" {
				return invalidResult(field, fmt.Sprintf("%s là bắt buộc", field))
			}
		}
		return ValidationResult{IsValid: true}
	}
}

func invalidResult(property, message string) ValidationResult {
	return ValidationResult{
		IsValid:   false,
		ErrorText: message,
		Errors: []map[string]string{
			{"property": property, "message": message},
		},
	}
}
