package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"dash_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists the dashboard layout and user settings in SQLite.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the layout database under the user config
// directory and runs migrations.
func NewStorage() (*Storage, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.WidgetRecord{}, &domain.AppSetting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "DashGo", "data", "dashboard.db"), nil
}

// ======================================================================================
// Layout Operations
// ======================================================================================

// LoadLayout reads the persisted layout. A missing or unreadable store, or
// rows that fail validation, degrade to an empty layout rather than an
// error: the dashboard must always come up.
func (s *Storage) LoadLayout() domain.LayoutConfig {
	layout := domain.LayoutConfig{Version: domain.LayoutVersion}

	var records []domain.WidgetRecord
	if err := s.db.Order("created_at").Find(&records).Error; err != nil {
		slog.Warn("Failed to load layout, starting empty", slog.Any("error", err))
		return layout
	}

	for _, r := range records {
		cfg := r.ToConfig()
		if !cfg.Kind.IsValid() {
			slog.Warn("Skipping layout row with unknown widget kind",
				slog.String("id", r.ID),
				slog.String("kind", r.Kind))
			continue
		}
		if cfg.Size.W <= 0 || cfg.Size.H <= 0 {
			cfg.Size = cfg.Kind.DefaultSize()
		}
		layout.Widgets = append(layout.Widgets, cfg)
	}
	return layout
}

// SaveLayout replaces the persisted layout wholesale inside one transaction.
func (s *Storage) SaveLayout(layout domain.LayoutConfig) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.WidgetRecord{}).Error; err != nil {
			return err
		}
		for _, cfg := range layout.Widgets {
			if err := tx.Create(domain.NewWidgetRecord(cfg)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// AddWidget persists one new widget.
func (s *Storage) AddWidget(cfg domain.WidgetConfig) error {
	return s.db.Save(domain.NewWidgetRecord(cfg)).Error
}

// UpdateWidgetPos updates only the stored position of one widget.
func (s *Storage) UpdateWidgetPos(id string, pos domain.GridPos) error {
	result := s.db.Model(&domain.WidgetRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"x": pos.X, "y": pos.Y})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrWidgetNotFound
	}
	return nil
}

// UpdateWidgetSize updates only the stored size of one widget.
func (s *Storage) UpdateWidgetSize(id string, size domain.GridSize) error {
	result := s.db.Model(&domain.WidgetRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"w": size.W, "h": size.H})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrWidgetNotFound
	}
	return nil
}

// RemoveWidget deletes one widget row.
func (s *Storage) RemoveWidget(id string) error {
	return s.db.Where("id = ?", id).Delete(&domain.WidgetRecord{}).Error
}

// ClearLayout deletes every widget row.
func (s *Storage) ClearLayout() error {
	return s.db.Where("1 = 1").Delete(&domain.WidgetRecord{}).Error
}

// GetWidget retrieves one widget config by id.
func (s *Storage) GetWidget(id string) (*domain.WidgetConfig, error) {
	var record domain.WidgetRecord
	err := s.db.First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	cfg := record.ToConfig()
	return &cfg, nil
}

// ======================================================================================
// Settings Operations
// ======================================================================================

// SaveSetting saves a user setting
func (s *Storage) SaveSetting(key, value string) error {
	setting := domain.AppSetting{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&setting).Error
}

// LoadSettings loads all user settings as a map
func (s *Storage) LoadSettings() (map[string]string, error) {
	var settings []domain.AppSetting
	if err := s.db.Find(&settings).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, st := range settings {
		result[st.Key] = st.Value
	}
	return result, nil
}
