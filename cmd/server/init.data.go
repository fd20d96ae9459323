package main

import (
	"context"

	"github.com/netfoundry/ziti-console/internal/global"
	"github.com/netfoundry/ziti-console/internal/logger"
	"github.com/netfoundry/ziti-console/internal/store"
)

// InitSeedData nạp fixture JSON vào các collection nếu SEED_ENABLED bật.
// Mỗi file <collection>.json trong SEED_PATH chứa một mảng document.
// Store được tra cứu theo tên qua StoreRegistry.
func InitSeedData(ctx context.Context) {
	log := logger.GetAppLogger()

	cfg := global.ServerConfig
	if !cfg.SeedEnabled {
		return
	}

	targets := make(map[string]*store.BaseStore)
	for _, name := range StoreRegistry.Names() {
		if st, exists := StoreRegistry.Get(name); exists {
			targets[name] = st
		}
	}

	err := store.SeedFromDirectory(ctx, targets, cfg.SeedPath, store.SeedOptions{})
	if err != nil {
		// Seed lỗi không chặn server, dữ liệu có thể nạp lại bằng tay
		log.WithError(err).Warn("Seed dữ liệu mẫu thất bại")
		return
	}
	log.Info("Seed dữ liệu mẫu hoàn tất")
}
