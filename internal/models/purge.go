package models

import "time"

// PurgedMarker is a marker the service once knew about (per the action
// log) but which no longer exists in the live library DB. It carries
// the last known state so it can be restored without re-entering data.
type PurgedMarker struct {
	RestoreKey string     `json:"restoreKey"`
	OldMarkerID uint       `json:"oldMarkerId"`
	ParentID    uint       `json:"parentId"`
	SectionID   uint       `json:"sectionId"`
	Start       int64      `json:"start"`
	End         int64      `json:"end"`
	Type        MarkerType `json:"type"`
	Final       bool       `json:"final"`
	LastSeenAt  time.Time  `json:"lastSeenAt"`
}
