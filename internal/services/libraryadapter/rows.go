package libraryadapter

import "time"

// The rows below mirror the schema of the foreign library database.
// That schema is owned by another application; the marker core never
// migrates it, only reads and writes rows that already conform to it.

type sectionRow struct {
	ID   uint   `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
	Type string `gorm:"column:type"`
}

func (sectionRow) TableName() string { return "library_sections" }

type itemRow struct {
	ID        uint   `gorm:"column:id;primaryKey"`
	Type      string `gorm:"column:type"`
	Title     string `gorm:"column:title"`
	ParentID  *uint  `gorm:"column:parent_id"`
	SectionID uint   `gorm:"column:section_id"`
	Duration  int64  `gorm:"column:duration"`
}

func (itemRow) TableName() string { return "library_items" }

type markerRow struct {
	ID            uint      `gorm:"column:id;primaryKey"`
	ParentID      uint      `gorm:"column:parent_id;index"`
	Start         int64     `gorm:"column:start"`
	End           int64     `gorm:"column:end"`
	Index         int       `gorm:"column:sort_index"`
	Type          string    `gorm:"column:type"`
	Final         bool      `gorm:"column:final"`
	CreatedByUser bool      `gorm:"column:created_by_user"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	ModifiedAt    time.Time `gorm:"column:modified_at"`
}

func (markerRow) TableName() string { return "library_markers" }
