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
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/params"
)

// categoryRow is the common shape of the four category tables.
type categoryRow struct {
	ID        uint
	Name      string
	Color     string
	ParentID  *uint
	CreatedAt time.Time
}

func (c categoryRow) toParams(kind params.CategoryKind) params.Category {
	return params.Category{
		ID:        c.ID,
		Kind:      kind,
		Name:      c.Name,
		Color:     c.Color,
		ParentID:  c.ParentID,
		CreatedAt: c.CreatedAt,
	}
}

func categoryTable(kind params.CategoryKind) (string, error) {
	switch kind {
	case params.NoteCategory:
		return "note_categories", nil
	case params.TodoCategory:
		return "todo_categories", nil
	case params.PhotoCategory:
		return "photo_categories", nil
	case params.GuideTag:
		return "guide_tags", nil
	}
	return "", apperrors.NewBadRequestError("unknown category kind %q", kind)
}

func categoryColumns(kind params.CategoryKind) string {
	if kind == params.PhotoCategory {
		return "id, name, parent_id, created_at"
	}
	return "id, name, color, created_at"
}

func categoryOrder(kind params.CategoryKind) string {
	if kind == params.GuideTag {
		return "name asc"
	}
	return "created_at desc, id desc"
}

func (s *SQLDatabase) CreateCategory(ctx context.Context, kind params.CategoryKind, param params.CreateCategoryParams) (params.Category, error) {
	var row categoryRow
	db := s.withCtx(ctx)
	switch kind {
	case params.NoteCategory:
		cat := NoteCategory{Name: param.Name, Color: param.Color}
		if err := db.Create(&cat).Error; err != nil {
			return params.Category{}, translateError(err, "creating note category")
		}
		row = categoryRow{ID: cat.ID, Name: cat.Name, Color: cat.Color, CreatedAt: cat.CreatedAt}
	case params.TodoCategory:
		cat := TodoCategory{Name: param.Name, Color: param.Color}
		if err := db.Create(&cat).Error; err != nil {
			return params.Category{}, translateError(err, "creating todo category")
		}
		row = categoryRow{ID: cat.ID, Name: cat.Name, Color: cat.Color, CreatedAt: cat.CreatedAt}
	case params.PhotoCategory:
		cat := PhotoCategory{Name: param.Name, ParentID: param.ParentID}
		if err := db.Omit("Parent").Create(&cat).Error; err != nil {
			return params.Category{}, translateError(err, "creating photo category")
		}
		row = categoryRow{ID: cat.ID, Name: cat.Name, ParentID: cat.ParentID, CreatedAt: cat.CreatedAt}
	case params.GuideTag:
		cat := GuideTag{Name: param.Name, Color: param.Color}
		if err := db.Create(&cat).Error; err != nil {
			return params.Category{}, translateError(err, "creating guide tag")
		}
		row = categoryRow{ID: cat.ID, Name: cat.Name, Color: cat.Color, CreatedAt: cat.CreatedAt}
	default:
		return params.Category{}, apperrors.NewBadRequestError("unknown category kind %q", kind)
	}
	return row.toParams(kind), nil
}

func (s *SQLDatabase) GetCategory(ctx context.Context, kind params.CategoryKind, categoryID uint) (params.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return params.Category{}, err
	}
	var row categoryRow
	q := s.withCtx(ctx).Table(table).Select(categoryColumns(kind)).Where("id = ?", categoryID).Take(&row)
	if q.Error != nil {
		return params.Category{}, translateError(q.Error, fmt.Sprintf("fetching %s category", kind))
	}
	return row.toParams(kind), nil
}

// ListCategories returns every category of a kind as a flat list. Trees are
// assembled by the caller.
func (s *SQLDatabase) ListCategories(ctx context.Context, kind params.CategoryKind) ([]params.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return nil, err
	}
	var rows []categoryRow
	q := s.withCtx(ctx).Table(table).Select(categoryColumns(kind)).Order(categoryOrder(kind)).Find(&rows)
	if q.Error != nil {
		return nil, translateError(q.Error, fmt.Sprintf("listing %s categories", kind))
	}

	ret := make([]params.Category, len(rows))
	for idx, val := range rows {
		ret[idx] = val.toParams(kind)
	}
	return ret, nil
}

func (s *SQLDatabase) CountCategories(ctx context.Context, kind params.CategoryKind) (int64, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := s.withCtx(ctx).Table(table).Count(&count).Error; err != nil {
		return 0, translateError(err, fmt.Sprintf("counting %s categories", kind))
	}
	return count, nil
}

// DeleteCategory removes a category in a single transaction. With cascade set
// the items filed under it are deleted too, otherwise they are detached. The
// paths of deleted photos are returned so the caller can remove the files.
// Deleting an unknown category is a no-op.
func (s *SQLDatabase) DeleteCategory(ctx context.Context, kind params.CategoryKind, categoryID uint, cascade bool) ([]string, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return nil, err
	}

	var removedFiles []string
	err = s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Table(table).Where("id = ?", categoryID).Count(&count).Error; err != nil {
			return errors.Wrap(err, "fetching category")
		}
		if count == 0 {
			return nil
		}

		var delErr error
		switch kind {
		case params.NoteCategory:
			delErr = deleteFlatCategory(tx, &Note{}, &NoteCategory{}, categoryID, cascade)
		case params.TodoCategory:
			delErr = deleteFlatCategory(tx, &Todo{}, &TodoCategory{}, categoryID, cascade)
		case params.PhotoCategory:
			removedFiles, delErr = deletePhotoCategory(tx, categoryID, cascade)
		case params.GuideTag:
			delErr = deleteGuideTag(tx, categoryID)
		}
		return delErr
	})
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("deleting %s category", kind))
	}
	return removedFiles, nil
}

func deleteFlatCategory(tx *gorm.DB, item, category interface{}, categoryID uint, cascade bool) error {
	if cascade {
		if err := tx.Where("category_id = ?", categoryID).Delete(item).Error; err != nil {
			return errors.Wrap(err, "deleting items")
		}
	} else {
		q := tx.Model(item).Where("category_id = ?", categoryID).Update("category_id", nil)
		if q.Error != nil {
			return errors.Wrap(q.Error, "detaching items")
		}
	}
	if err := tx.Where("id = ?", categoryID).Delete(category).Error; err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return nil
}

func deletePhotoCategory(tx *gorm.DB, categoryID uint, cascade bool) ([]string, error) {
	var childIDs []uint
	q := tx.Model(&PhotoCategory{}).Where("parent_id = ?", categoryID).Pluck("id", &childIDs)
	if q.Error != nil {
		return nil, errors.Wrap(q.Error, "fetching child categories")
	}
	ids := append([]uint{categoryID}, childIDs...)

	var files []string
	if cascade {
		q = tx.Model(&Photo{}).Where("category_id in ?", ids).Pluck("file_path", &files)
		if q.Error != nil {
			return nil, errors.Wrap(q.Error, "fetching photo files")
		}
		if err := tx.Where("category_id in ?", ids).Delete(&Photo{}).Error; err != nil {
			return nil, errors.Wrap(err, "deleting photos")
		}
	} else {
		q = tx.Model(&Photo{}).Where("category_id in ?", ids).Update("category_id", nil)
		if q.Error != nil {
			return nil, errors.Wrap(q.Error, "detaching photos")
		}
	}

	if len(childIDs) > 0 {
		if err := tx.Where("id in ?", childIDs).Delete(&PhotoCategory{}).Error; err != nil {
			return nil, errors.Wrap(err, "deleting child categories")
		}
	}
	if err := tx.Where("id = ?", categoryID).Delete(&PhotoCategory{}).Error; err != nil {
		return nil, errors.Wrap(err, "deleting category")
	}
	return files, nil
}

// deleteGuideTag only drops the tag and its relations. Entries stay.
func deleteGuideTag(tx *gorm.DB, tagID uint) error {
	if err := tx.Where("guide_tag_id = ?", tagID).Delete(&GuideTagRelation{}).Error; err != nil {
		return errors.Wrap(err, "deleting tag relations")
	}
	if err := tx.Where("id = ?", tagID).Delete(&GuideTag{}).Error; err != nil {
		return errors.Wrap(err, "deleting tag")
	}
	return nil
}
