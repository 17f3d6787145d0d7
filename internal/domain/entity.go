package domain

import "time"

// WidgetRecord is the persisted row for one widget of the saved layout.
type WidgetRecord struct {
	ID        string `gorm:"primaryKey" json:"id"`
	Kind      string `gorm:"index" json:"kind"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	W         int    `json:"w"`
	H         int    `json:"h"`
	Channel   string `json:"channel"`
	TargetKey string `json:"target_key"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ToConfig converts the stored row into its runtime config form.
func (r *WidgetRecord) ToConfig() WidgetConfig {
	return WidgetConfig{
		ID:        r.ID,
		Kind:      WidgetKind(r.Kind),
		Pos:       GridPos{X: r.X, Y: r.Y},
		Size:      GridSize{W: r.W, H: r.H},
		Channel:   Channel(r.Channel),
		TargetKey: r.TargetKey,
	}
}

// NewWidgetRecord builds the persisted row for a widget config.
func NewWidgetRecord(cfg WidgetConfig) *WidgetRecord {
	return &WidgetRecord{
		ID:        cfg.ID,
		Kind:      string(cfg.Kind),
		X:         cfg.Pos.X,
		Y:         cfg.Pos.Y,
		W:         cfg.Size.W,
		H:         cfg.Size.H,
		Channel:   string(cfg.Channel),
		TargetKey: cfg.TargetKey,
	}
}

// AppSetting represents user-specific configuration (Key-Value)
type AppSetting struct {
	Key       string `gorm:"primaryKey" json:"key"`
	Value     string `json:"value"`
	UpdatedAt time.Time
}
