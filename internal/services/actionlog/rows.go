package actionlog

import "time"

// row is the durable, append-only representation of models.ActionLogEntry
// in the service's own side database (component B). Rows are never
// updated or deleted; Ignore writes a new row rather than mutating one.
type row struct {
	OpID       uint64 `gorm:"column:op_id;primaryKey;autoIncrement"`
	Op         string `gorm:"column:op"`
	MarkerID   uint   `gorm:"column:marker_id;index"`
	RestoreKey string `gorm:"column:restore_key;index"`

	ParentID  uint   `gorm:"column:parent_id;index"`
	SectionID uint   `gorm:"column:section_id"`
	Start     int64  `gorm:"column:start"`
	End       int64  `gorm:"column:end"`
	Type      string `gorm:"column:type"`
	Final     bool   `gorm:"column:final"`

	OldStart *int64 `gorm:"column:old_start"`
	OldEnd   *int64 `gorm:"column:old_end"`

	Ignored bool      `gorm:"column:ignored"`
	At      time.Time `gorm:"column:at"`
}

func (row) TableName() string { return "action_log_entries" }
