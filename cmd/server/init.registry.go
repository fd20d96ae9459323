package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/netfoundry/ziti-console/internal/global"
	"github.com/netfoundry/ziti-console/internal/registry"
	"github.com/netfoundry/ziti-console/internal/store"
)

// StoreRegistry giữ các store theo tên collection để tra cứu động
// (seed dữ liệu, tooling vận hành).
var StoreRegistry = registry.NewRegistry[*store.BaseStore]()

// InitStores dựng toàn bộ store trên database đã kết nối, khởi tạo
// collection và index, rồi đăng ký vào StoreRegistry.
func InitStores(ctx context.Context) *store.Stores {
	db := global.MongoDB_Session.Database(global.ServerConfig.MongoDB_DBName)

	stores := store.NewStores(func(collection string) store.Engine {
		return store.NewMongoEngine(db, collection)
	})

	if err := stores.InitializeAll(ctx); err != nil {
		logrus.Fatalf("Failed to initialize collections: %v", err)
	}

	for name, st := range stores.Map() {
		if _, err := StoreRegistry.Register(name, st); err != nil {
			logrus.Fatalf("Failed to register store %s: %v", name, err)
		}
	}
	logrus.Info("Initialized stores and registry")

	return stores
}
