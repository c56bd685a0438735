// Copyright 2023 Gabriel Adrian Samfira
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package database

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gabriel-samfira/techdesk/params"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type entryTag struct {
	GuideEntryID uint
	ID           uint
	Name         string
	Color        string
	CreatedAt    time.Time
}

func guideEntryToParams(e GuideEntry, tags []params.Category) params.GuideEntry {
	if tags == nil {
		tags = []params.Category{}
	}
	return params.GuideEntry{
		ID:        e.ID,
		Title:     e.Title,
		Problem:   e.Problem,
		Solution:  e.Solution,
		Tags:      tags,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// tagsForEntries returns the tags of each entry, sorted by name.
func tagsForEntries(db *gorm.DB, entryIDs []uint) (map[uint][]params.Category, error) {
	ret := map[uint][]params.Category{}
	if len(entryIDs) == 0 {
		return ret, nil
	}

	var rows []entryTag
	q := db.Table("guide_tags").
		Select("guide_tag_relations.guide_entry_id, guide_tags.id, guide_tags.name, guide_tags.color, guide_tags.created_at").
		Joins("JOIN guide_tag_relations ON guide_tag_relations.guide_tag_id = guide_tags.id").
		Where("guide_tag_relations.guide_entry_id IN ?", entryIDs).
		Order("guide_tags.name asc").
		Scan(&rows)
	if q.Error != nil {
		return nil, errors.Wrap(q.Error, "fetching entry tags")
	}
	for _, row := range rows {
		tag := categoryRow{ID: row.ID, Name: row.Name, Color: row.Color, CreatedAt: row.CreatedAt}
		ret[row.GuideEntryID] = append(ret[row.GuideEntryID], tag.toParams(params.GuideTag))
	}
	return ret, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	ret := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ret = append(ret, id)
	}
	return ret
}

func setEntryTags(tx *gorm.DB, entryID uint, tagIDs []uint) error {
	if err := tx.Where("guide_entry_id = ?", entryID).Delete(&GuideTagRelation{}).Error; err != nil {
		return errors.Wrap(err, "removing entry tags")
	}
	tagIDs = uniqueIDs(tagIDs)
	if len(tagIDs) == 0 {
		return nil
	}
	relations := make([]GuideTagRelation, len(tagIDs))
	for idx, tagID := range tagIDs {
		relations[idx] = GuideTagRelation{
			GuideEntryID: entryID,
			GuideTagID:   tagID,
		}
	}
	if err := tx.Omit(clause.Associations).Create(&relations).Error; err != nil {
		return errors.Wrap(err, "adding entry tags")
	}
	return nil
}

func (s *SQLDatabase) ListGuideEntries(ctx context.Context, filter params.GuideFilter) ([]params.GuideEntry, error) {
	db := s.withCtx(ctx)
	q := db.Model(&GuideEntry{})
	if filter.TagID != nil {
		q = q.Where("id IN (?)", db.Model(&GuideTagRelation{}).Select("guide_entry_id").Where("guide_tag_id = ?", *filter.TagID))
	}
	if query := strings.TrimSpace(filter.Query); query != "" {
		pattern := "%" + likeEscaper.Replace(query) + "%"
		q = q.Where(`title LIKE ? ESCAPE '\' OR problem LIKE ? ESCAPE '\' OR solution LIKE ? ESCAPE '\'`, pattern, pattern, pattern)
	}

	var entries []GuideEntry
	if err := q.Order("updated_at desc, id desc").Find(&entries).Error; err != nil {
		return nil, translateError(err, "listing guide entries")
	}

	ids := make([]uint, len(entries))
	for idx, val := range entries {
		ids[idx] = val.ID
	}
	tags, err := tagsForEntries(db, ids)
	if err != nil {
		return nil, translateError(err, "listing guide entries")
	}

	ret := make([]params.GuideEntry, len(entries))
	for idx, val := range entries {
		ret[idx] = guideEntryToParams(val, tags[val.ID])
	}
	return ret, nil
}

func (s *SQLDatabase) GetGuideEntry(ctx context.Context, entryID uint) (params.GuideEntry, error) {
	db := s.withCtx(ctx)
	var entry GuideEntry
	if err := db.Where("id = ?", entryID).First(&entry).Error; err != nil {
		return params.GuideEntry{}, translateError(err, "fetching guide entry")
	}
	tags, err := tagsForEntries(db, []uint{entry.ID})
	if err != nil {
		return params.GuideEntry{}, translateError(err, "fetching guide entry")
	}
	return guideEntryToParams(entry, tags[entry.ID]), nil
}

// CreateGuideEntry stores an entry with its tags. Repeated tag IDs are
// attached once.
func (s *SQLDatabase) CreateGuideEntry(ctx context.Context, param params.GuideEntryParams) (params.GuideEntry, error) {
	entry := GuideEntry{
		Title:    param.Title,
		Problem:  param.Problem,
		Solution: param.Solution,
	}
	err := s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return errors.Wrap(err, "creating entry")
		}
		return setEntryTags(tx, entry.ID, param.TagIDs)
	})
	if err != nil {
		return params.GuideEntry{}, translateError(err, "creating guide entry")
	}
	return s.GetGuideEntry(ctx, entry.ID)
}

// UpdateGuideEntry replaces the fields and the tag set of an entry. Unknown
// IDs are a no-op.
func (s *SQLDatabase) UpdateGuideEntry(ctx context.Context, entryID uint, param params.GuideEntryParams) error {
	err := s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&GuideEntry{}).Where("id = ?", entryID).Updates(map[string]interface{}{
			"title":    param.Title,
			"problem":  param.Problem,
			"solution": param.Solution,
		})
		if q.Error != nil {
			return errors.Wrap(q.Error, "updating entry")
		}
		if q.RowsAffected == 0 {
			return nil
		}
		return setEntryTags(tx, entryID, param.TagIDs)
	})
	if err != nil {
		return translateError(err, "updating guide entry")
	}
	return nil
}

func (s *SQLDatabase) DeleteGuideEntry(ctx context.Context, entryID uint) error {
	err := s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("guide_entry_id = ?", entryID).Delete(&GuideTagRelation{}).Error; err != nil {
			return errors.Wrap(err, "removing entry tags")
		}
		if err := tx.Where("id = ?", entryID).Delete(&GuideEntry{}).Error; err != nil {
			return errors.Wrap(err, "deleting entry")
		}
		return nil
	})
	if err != nil {
		return translateError(err, "deleting guide entry")
	}
	return nil
}

// ImportGuideEntries creates all rows in one transaction. Tags are matched by
// name and created with colorFor(n) when missing, n being the number of tags
// that existed before. It returns the number of imported entries.
func (s *SQLDatabase) ImportGuideEntries(ctx context.Context, rows []params.GuideImportRow, colorFor func(int) string) (int, error) {
	err := s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []GuideTag
		if err := tx.Find(&existing).Error; err != nil {
			return errors.Wrap(err, "fetching tags")
		}
		tagIDs := make(map[string]uint, len(existing))
		for _, tag := range existing {
			tagIDs[tag.Name] = tag.ID
		}

		for _, row := range rows {
			var ids []uint
			for _, name := range row.TagNames {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				if id, ok := tagIDs[name]; ok {
					ids = append(ids, id)
					continue
				}
				tag := GuideTag{Name: name, Color: colorFor(len(tagIDs))}
				if err := tx.Create(&tag).Error; err != nil {
					return errors.Wrapf(err, "creating tag %q", name)
				}
				tagIDs[name] = tag.ID
				ids = append(ids, tag.ID)
			}

			entry := GuideEntry{
				Title:    row.Title,
				Problem:  row.Problem,
				Solution: row.Solution,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return errors.Wrapf(err, "creating entry %q", row.Title)
			}
			if err := setEntryTags(tx, entry.ID, ids); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, translateError(err, "importing guide entries")
	}
	return len(rows), nil
}
