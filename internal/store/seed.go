package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/netfoundry/ziti-console/internal/logger"
)

// placeholderPattern khớp ${VAR} trong nội dung fixture.
var placeholderPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// SeedOptions cấu hình cho seeding.
// DestroyFirst xóa và khởi tạo lại collection trước khi insert.
type SeedOptions struct {
	ReplaceValues map[string]string
	DestroyFirst  bool
}

// Seed ghi danh sách entity vào một store. Lỗi insert từng entity được log
// và bỏ qua để các entity còn lại vẫn được ghi.
func Seed(ctx context.Context, s *BaseStore, entities []Document, opts SeedOptions) error {
	log := logger.GetAppLogger()
	log.WithField("collection", s.CollectionName()).Info("Bắt đầu seed dữ liệu")

	if opts.DestroyFirst {
		if err := s.Destroy(ctx); err != nil {
			return err
		}
		if err := s.Initialize(ctx); err != nil {
			return err
		}
	}

	for _, entity := range entities {
		if _, err := s.InsertOne(ctx, entity); err != nil {
			log.WithError(err).WithField("collection", s.CollectionName()).
				Error("Seed entity thất bại, bỏ qua")
		}
	}
	return nil
}

// SeedFromDirectory đọc các file <collection>.json trong thư mục fixture
// và seed vào store tương ứng trong stores. Placeholder ${VAR} trong nội dung
// file được thay bằng giá trị trong ReplaceValues.
func SeedFromDirectory(ctx context.Context, stores map[string]*BaseStore, fixturePath string, opts SeedOptions) error {
	files, err := os.ReadDir(fixturePath)
	if err != nil {
		return fmt.Errorf("không đọc được thư mục fixture %s: %w", fixturePath, err)
	}

	for _, file := range files {
		if file.IsDir() || strings.ToLower(filepath.Ext(file.Name())) != ".json" {
			continue
		}

		collection := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		s, ok := stores[collection]
		if !ok {
			logger.GetAppLogger().WithField("collection", collection).
				Warn("Không có store cho fixture, bỏ qua file")
			continue
		}

		content, err := os.ReadFile(filepath.Join(fixturePath, file.Name()))
		if err != nil {
			return fmt.Errorf("không đọc được fixture %s: %w", file.Name(), err)
		}

		entities, err := parseFixtureContent(content, opts.ReplaceValues)
		if err != nil {
			return fmt.Errorf("fixture %s không hợp lệ: %w", file.Name(), err)
		}

		if err := Seed(ctx, s, entities, opts); err != nil {
			return err
		}
	}
	return nil
}

// parseFixtureContent thay placeholder ${VAR} rồi parse JSON array thành documents.
func parseFixtureContent(content []byte, replaceValues map[string]string) ([]Document, error) {
	replaced := placeholderPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		name := placeholderPattern.FindSubmatch(match)[1]
		if value, ok := replaceValues[string(name)]; ok {
			return []byte(value)
		}
		return match
	})

	var entities []Document
	if err := json.Unmarshal(replaced, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}
