package global

import (
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/netfoundry/ziti-console/config"
)

// MongoDB_CollectionName chứa tên các collection trong MongoDB
type MongoDB_CollectionName struct {
	Identities         string // Tên collection cho identity
	Roles              string // Tên collection cho vai trò
	Enrollments        string // Tên collection cho enrollment đang chờ
	EmailVerifications string // Tên collection cho xác minh email
	Crypto             string // Tên collection cho khóa mã hóa
	Sessions           string // Tên collection cho phiên đăng nhập
}

// Collections chứa tên collection dùng thống nhất trong toàn bộ ứng dụng
var Collections = MongoDB_CollectionName{
	Identities:         "identities",
	Roles:              "roles",
	Enrollments:        "enrollments",
	EmailVerifications: "email-verifications",
	Crypto:             "crypto",
	Sessions:           "sessions",
}

// Validate là instance validator dùng chung, khởi tạo qua InitValidator
var Validate *validator.Validate

// ServerConfig chứa cấu hình server đọc từ env, khởi tạo trong cmd/server
var ServerConfig *config.Configuration

// MongoDB_Session là client MongoDB dùng chung, khởi tạo trong cmd/server
var MongoDB_Session *mongo.Client
