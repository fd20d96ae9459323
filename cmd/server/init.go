package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/netfoundry/ziti-console/config"
	"github.com/netfoundry/ziti-console/internal/database"
	"github.com/netfoundry/ziti-console/internal/global"
)

// Hàm khởi tạo các biến toàn cục
func InitGlobal(ctx context.Context) {
	initValidator()        // Khởi tạo validator
	initConfig()           // Khởi tạo cấu hình server
	initDatabase_MongoDB(ctx) // Khởi tạo kết nối database
}

// Hàm khởi tạo validator (dùng global.InitValidator để đăng ký custom validators: no_xss, strong_password, simple_email)
func initValidator() {
	global.InitValidator()
	logrus.Info("Initialized validator") // Ghi log thông báo đã khởi tạo validator
}

// Hàm khởi tạo cấu hình server
func initConfig() {
	global.ServerConfig = config.NewConfig()
	if global.ServerConfig == nil {
		logrus.Fatalf("Failed to initialize config: config is nil") // Ghi log lỗi nếu khởi tạo cấu hình thất bại
	}
	logrus.Info("Initialized server config") // Ghi log thông báo đã khởi tạo cấu hình server
}

// Hàm khởi tạo kết nối database. Retry tới khi kết nối được vì server
// không phục vụ được gì khi thiếu database.
func initDatabase_MongoDB(ctx context.Context) {
	var err error
	global.MongoDB_Session, err = database.SafeConnect(ctx, global.ServerConfig)
	if err != nil {
		logrus.Fatalf("Failed to get database instance: %v", err) // Chỉ xảy ra khi context bị hủy
	}
	logrus.Info("Connected to MongoDB") // Ghi log thông báo đã kết nối database thành công
}
