package libraryadapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/killallgit/player-api/internal/models"
	"gorm.io/gorm"
)

// GormAdapter implements Adapter against a *gorm.DB connection to the
// foreign library database.
type GormAdapter struct {
	db *gorm.DB
}

// New creates a library database adapter.
func New(db *gorm.DB) Adapter {
	return &GormAdapter{db: db}
}

func toItemType(s string) models.ItemType { return models.ItemType(s) }
func toMarkerType(s string) models.MarkerType { return models.MarkerType(s) }

func (a *GormAdapter) Sections(ctx context.Context) ([]models.Section, error) {
	var rows []sectionRow
	if err := a.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing sections: %w", err)
	}
	sections := make([]models.Section, len(rows))
	for i, r := range rows {
		sections[i] = models.Section{ID: r.ID, Name: r.Name, Type: toItemType(r.Type)}
	}
	return sections, nil
}

func (a *GormAdapter) GetSection(ctx context.Context, id uint) (*models.Section, error) {
	var row sectionRow
	if err := a.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting section %d: %w", id, err)
	}
	return &models.Section{ID: row.ID, Name: row.Name, Type: toItemType(row.Type)}, nil
}

func (a *GormAdapter) GetItem(ctx context.Context, id uint) (*models.Item, error) {
	var row itemRow
	if err := a.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting item %d: %w", id, err)
	}
	return rowToItem(row), nil
}

func rowToItem(row itemRow) *models.Item {
	return &models.Item{
		ID:        row.ID,
		Type:      toItemType(row.Type),
		Title:     row.Title,
		ParentID:  row.ParentID,
		SectionID: row.SectionID,
		Duration:  row.Duration,
	}
}

func (a *GormAdapter) ListChildren(ctx context.Context, parentID uint, childType models.ItemType) ([]models.Item, error) {
	var rows []itemRow
	q := a.db.WithContext(ctx).Where("parent_id = ?", parentID)
	if childType != "" {
		q = q.Where("type = ?", string(childType))
	}
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing children of %d: %w", parentID, err)
	}
	items := make([]models.Item, len(rows))
	for i, r := range rows {
		items[i] = *rowToItem(r)
	}
	return items, nil
}

// ancestors resolves the season/show ids for an episode by walking the
// item's parent chain. Movies and other non-episode items have no
// season/show ancestors.
func (a *GormAdapter) ancestors(ctx context.Context, item *models.Item) (seasonID, showID *uint, err error) {
	if item.Type != models.ItemEpisode || item.ParentID == nil {
		return nil, nil, nil
	}
	var season itemRow
	if err := a.db.WithContext(ctx).First(&season, *item.ParentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("resolving season for item %d: %w", item.ID, err)
	}
	sid := season.ID
	if season.ParentID == nil {
		return &sid, nil, nil
	}
	var show itemRow
	if err := a.db.WithContext(ctx).First(&show, *season.ParentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &sid, nil, nil
		}
		return nil, nil, fmt.Errorf("resolving show for item %d: %w", item.ID, err)
	}
	shid := show.ID
	return &sid, &shid, nil
}

func (a *GormAdapter) rowToMarker(ctx context.Context, row markerRow, parent *models.Item) (models.Marker, error) {
	seasonID, showID, err := a.ancestors(ctx, parent)
	if err != nil {
		return models.Marker{}, err
	}
	return models.Marker{
		ID:            row.ID,
		ParentID:      row.ParentID,
		SeasonID:      seasonID,
		ShowID:        showID,
		SectionID:     parent.SectionID,
		Start:         row.Start,
		End:           row.End,
		Index:         row.Index,
		Type:          toMarkerType(row.Type),
		Final:         row.Final,
		CreatedByUser: row.CreatedByUser,
		CreatedAt:     row.CreatedAt,
		ModifiedAt:    row.ModifiedAt,
	}, nil
}

func (a *GormAdapter) GetMarker(ctx context.Context, id uint) (*models.Marker, error) {
	var row markerRow
	if err := a.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting marker %d: %w", id, err)
	}
	parent, err := a.GetItem(ctx, row.ParentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("getting marker %d: parent %d not found", id, row.ParentID)
	}
	m, err := a.rowToMarker(ctx, row, parent)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (a *GormAdapter) ListMarkers(ctx context.Context, parentID uint) ([]models.Marker, error) {
	parent, err := a.GetItem(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, nil
	}

	var rows []markerRow
	if err := a.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("start ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing markers for parent %d: %w", parentID, err)
	}

	markers := make([]models.Marker, 0, len(rows))
	for _, row := range rows {
		m, err := a.rowToMarker(ctx, row, parent)
		if err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	return markers, nil
}

func (a *GormAdapter) ListMarkersForParents(ctx context.Context, parentIDs []uint) (map[uint][]models.Marker, error) {
	result := make(map[uint][]models.Marker, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}

	var rows []markerRow
	if err := a.db.WithContext(ctx).Where("parent_id IN ?", parentIDs).Order("parent_id ASC, start ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing markers for %d parents: %w", len(parentIDs), err)
	}

	parentCache := make(map[uint]*models.Item, len(parentIDs))
	for _, row := range rows {
		parent, ok := parentCache[row.ParentID]
		if !ok {
			var err error
			parent, err = a.GetItem(ctx, row.ParentID)
			if err != nil {
				return nil, err
			}
			parentCache[row.ParentID] = parent
		}
		if parent == nil {
			continue
		}
		m, err := a.rowToMarker(ctx, row, parent)
		if err != nil {
			return nil, err
		}
		result[row.ParentID] = append(result[row.ParentID], m)
	}
	return result, nil
}

// MarkerableDescendants performs a breadth-first walk from rootID down
// to every episode/movie reachable underneath it, returning their ids.
// A root that is itself markerable is included. Used by Shift/purge to
// resolve subtree membership independent of whether any marker
// currently exists under a given parent.
func (a *GormAdapter) MarkerableDescendants(ctx context.Context, rootID uint) ([]uint, error) {
	root, err := a.GetItem(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}
	if root.Type.Markerable() {
		return []uint{root.ID}, nil
	}

	var leaves []uint
	frontier := []uint{root.ID}
	for len(frontier) > 0 {
		var rows []itemRow
		if err := a.db.WithContext(ctx).Where("parent_id IN ?", frontier).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("walking subtree under %d: %w", rootID, err)
		}
		frontier = frontier[:0]
		for _, r := range rows {
			if toItemType(r.Type).Markerable() {
				leaves = append(leaves, r.ID)
			} else {
				frontier = append(frontier, r.ID)
			}
		}
	}
	return leaves, nil
}

func (a *GormAdapter) ListMarkersForSubtree(ctx context.Context, rootID uint) ([]models.Marker, error) {
	leaves, err := a.MarkerableDescendants(ctx, rootID)
	if err != nil {
		return nil, err
	}
	byParent, err := a.ListMarkersForParents(ctx, leaves)
	if err != nil {
		return nil, err
	}
	var all []models.Marker
	for _, id := range leaves {
		all = append(all, byParent[id]...)
	}
	return all, nil
}

func (a *GormAdapter) SectionOverview(ctx context.Context, sectionID uint) ([]SectionOverviewEntry, error) {
	var rows []itemRow
	if err := a.db.WithContext(ctx).
		Where("section_id = ? AND type IN ?", sectionID, []string{string(models.ItemEpisode), string(models.ItemMovie)}).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("enumerating section %d overview: %w", sectionID, err)
	}
	entries := make([]SectionOverviewEntry, len(rows))
	for i, r := range rows {
		entries[i] = SectionOverviewEntry{ParentID: r.ID, Type: toItemType(r.Type)}
	}
	return entries, nil
}

func (a *GormAdapter) InsertMarker(ctx context.Context, parentID uint, start, end int64, typ models.MarkerType, final bool) (models.Marker, error) {
	parent, err := a.GetItem(ctx, parentID)
	if err != nil {
		return models.Marker{}, err
	}
	if parent == nil {
		return models.Marker{}, fmt.Errorf("insert marker: parent %d not found", parentID)
	}

	var created markerRow
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&markerRow{}).Where("parent_id = ?", parentID).Count(&count).Error; err != nil {
			return err
		}
		row := markerRow{
			ParentID:      parentID,
			Start:         start,
			End:           end,
			Index:         int(count),
			Type:          string(typ),
			Final:         final,
			CreatedByUser: true,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return models.Marker{}, fmt.Errorf("inserting marker on parent %d: %w", parentID, err)
	}

	return a.rowToMarker(ctx, created, parent)
}

func (a *GormAdapter) UpdateMarker(ctx context.Context, id uint, start, end int64, index int, typ models.MarkerType, final bool) error {
	result := a.db.WithContext(ctx).Model(&markerRow{}).Where("id = ?", id).Updates(map[string]any{
		"start":       start,
		"end":         end,
		"sort_index":  index,
		"type":        string(typ),
		"final":       final,
		"modified_at": gorm.Expr("CURRENT_TIMESTAMP"),
	})
	if result.Error != nil {
		return fmt.Errorf("updating marker %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("marker %d not found", id)
	}
	return nil
}

func (a *GormAdapter) UpdateMarkerIndex(ctx context.Context, id uint, index int) error {
	result := a.db.WithContext(ctx).Model(&markerRow{}).Where("id = ?", id).Update("sort_index", index)
	if result.Error != nil {
		return fmt.Errorf("updating marker %d index: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("marker %d not found", id)
	}
	return nil
}

func (a *GormAdapter) DeleteMarker(ctx context.Context, id uint) error {
	result := a.db.WithContext(ctx).Delete(&markerRow{}, id)
	if result.Error != nil {
		return fmt.Errorf("deleting marker %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("marker %d not found", id)
	}
	return nil
}

func (a *GormAdapter) WithinTransaction(ctx context.Context, fn func(tx Adapter) error) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormAdapter{db: tx})
	})
}
