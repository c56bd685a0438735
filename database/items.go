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

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/gabriel-samfira/techdesk/params"
)

func noteToParams(n Note) params.Note {
	return params.Note{
		ID:         n.ID,
		Title:      n.Title,
		Content:    n.Content,
		CategoryID: n.CategoryID,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

func todoToParams(t Todo) params.Todo {
	return params.Todo{
		ID:         t.ID,
		Task:       t.Task,
		Completed:  t.Completed,
		CategoryID: t.CategoryID,
		CreatedAt:  t.CreatedAt,
	}
}

func photoToParams(p Photo) params.Photo {
	return params.Photo{
		ID: p.ID,
		FileInfo: params.FileInfo{
			FileName:     p.FileName,
			OriginalName: p.OriginalName,
			FilePath:     p.FilePath,
			FileType:     p.FileType,
			FileSize:     p.FileSize,
		},
		CategoryID:  p.CategoryID,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

func documentToParams(d Document) params.Document {
	return params.Document{
		ID: d.ID,
		FileInfo: params.FileInfo{
			FileName:     d.FileName,
			OriginalName: d.OriginalName,
			FilePath:     d.FilePath,
			FileType:     d.FileType,
			FileSize:     d.FileSize,
		},
		CreatedAt: d.CreatedAt,
	}
}

func filterByCategory(q *gorm.DB, categoryID *uint) *gorm.DB {
	if categoryID == nil {
		return q
	}
	return q.Where("category_id = ?", *categoryID)
}

func (s *SQLDatabase) ListNotes(ctx context.Context, categoryID *uint) ([]params.Note, error) {
	var notes []Note
	q := filterByCategory(s.withCtx(ctx), categoryID).Order("updated_at desc, id desc")
	if err := q.Find(&notes).Error; err != nil {
		return nil, translateError(err, "listing notes")
	}

	ret := make([]params.Note, len(notes))
	for idx, val := range notes {
		ret[idx] = noteToParams(val)
	}
	return ret, nil
}

func (s *SQLDatabase) CreateNote(ctx context.Context, param params.NoteParams) (params.Note, error) {
	note := Note{
		Title:      param.Title,
		Content:    param.Content,
		CategoryID: param.CategoryID,
	}
	if err := s.withCtx(ctx).Omit("Category").Create(&note).Error; err != nil {
		return params.Note{}, translateError(err, "creating note")
	}
	return noteToParams(note), nil
}

// UpdateNote replaces the title, content and category of a note. Unknown IDs
// are a no-op.
func (s *SQLDatabase) UpdateNote(ctx context.Context, noteID uint, param params.NoteParams) error {
	q := s.withCtx(ctx).Model(&Note{}).Where("id = ?", noteID).Updates(map[string]interface{}{
		"title":       param.Title,
		"content":     param.Content,
		"category_id": param.CategoryID,
	})
	if q.Error != nil {
		return translateError(q.Error, "updating note")
	}
	return nil
}

func (s *SQLDatabase) DeleteNote(ctx context.Context, noteID uint) error {
	if err := s.withCtx(ctx).Where("id = ?", noteID).Delete(&Note{}).Error; err != nil {
		return translateError(err, "deleting note")
	}
	return nil
}

func (s *SQLDatabase) ListTodos(ctx context.Context, categoryID *uint) ([]params.Todo, error) {
	var todos []Todo
	q := filterByCategory(s.withCtx(ctx), categoryID).Order("created_at desc, id desc")
	if err := q.Find(&todos).Error; err != nil {
		return nil, translateError(err, "listing todos")
	}

	ret := make([]params.Todo, len(todos))
	for idx, val := range todos {
		ret[idx] = todoToParams(val)
	}
	return ret, nil
}

func (s *SQLDatabase) CreateTodo(ctx context.Context, param params.CreateTodoParams) (params.Todo, error) {
	todo := Todo{
		Task:       param.Task,
		CategoryID: param.CategoryID,
	}
	if err := s.withCtx(ctx).Omit("Category").Create(&todo).Error; err != nil {
		return params.Todo{}, translateError(err, "creating todo")
	}
	return todoToParams(todo), nil
}

func (s *SQLDatabase) UpdateTodo(ctx context.Context, todoID uint, param params.UpdateTodoParams) error {
	updates := map[string]interface{}{}
	if param.Task != nil {
		updates["task"] = *param.Task
	}
	if param.Completed != nil {
		updates["completed"] = *param.Completed
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.withCtx(ctx).Model(&Todo{}).Where("id = ?", todoID).Updates(updates).Error; err != nil {
		return translateError(err, "updating todo")
	}
	return nil
}

func (s *SQLDatabase) DeleteTodo(ctx context.Context, todoID uint) error {
	if err := s.withCtx(ctx).Where("id = ?", todoID).Delete(&Todo{}).Error; err != nil {
		return translateError(err, "deleting todo")
	}
	return nil
}

func (s *SQLDatabase) ListPhotos(ctx context.Context, categoryID *uint) ([]params.Photo, error) {
	var photos []Photo
	q := filterByCategory(s.withCtx(ctx), categoryID).Order("created_at desc, id desc")
	if err := q.Find(&photos).Error; err != nil {
		return nil, translateError(err, "listing photos")
	}

	ret := make([]params.Photo, len(photos))
	for idx, val := range photos {
		ret[idx] = photoToParams(val)
	}
	return ret, nil
}

func (s *SQLDatabase) GetPhoto(ctx context.Context, photoID uint) (params.Photo, error) {
	var photo Photo
	if err := s.withCtx(ctx).Where("id = ?", photoID).First(&photo).Error; err != nil {
		return params.Photo{}, translateError(err, "fetching photo")
	}
	return photoToParams(photo), nil
}

func (s *SQLDatabase) CreatePhoto(ctx context.Context, categoryID *uint, description string, file params.FileInfo) (params.Photo, error) {
	photo := Photo{
		FileName:     file.FileName,
		OriginalName: file.OriginalName,
		FilePath:     file.FilePath,
		FileType:     file.FileType,
		FileSize:     file.FileSize,
		Description:  description,
		CategoryID:   categoryID,
	}
	if err := s.withCtx(ctx).Omit("Category").Create(&photo).Error; err != nil {
		return params.Photo{}, translateError(err, "creating photo")
	}
	return photoToParams(photo), nil
}

func (s *SQLDatabase) UpdatePhoto(ctx context.Context, photoID uint, param params.UpdatePhotoParams) error {
	q := s.withCtx(ctx).Model(&Photo{}).Where("id = ?", photoID).Update("description", param.Description)
	if q.Error != nil {
		return translateError(q.Error, "updating photo")
	}
	return nil
}

// DeletePhoto removes a photo row and returns the path of its file. The path
// is empty when the photo does not exist.
func (s *SQLDatabase) DeletePhoto(ctx context.Context, photoID uint) (string, error) {
	var filePath string
	err := s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		var photo Photo
		q := tx.Where("id = ?", photoID).First(&photo)
		if q.Error != nil {
			if errors.Is(q.Error, gorm.ErrRecordNotFound) {
				return nil
			}
			return errors.Wrap(q.Error, "fetching photo")
		}
		if err := tx.Delete(&photo).Error; err != nil {
			return errors.Wrap(err, "deleting photo")
		}
		filePath = photo.FilePath
		return nil
	})
	if err != nil {
		return "", translateError(err, "removing photo")
	}
	return filePath, nil
}

func (s *SQLDatabase) ListDocuments(ctx context.Context) ([]params.Document, error) {
	var docs []Document
	if err := s.withCtx(ctx).Order("created_at desc, id desc").Find(&docs).Error; err != nil {
		return nil, translateError(err, "listing documents")
	}

	ret := make([]params.Document, len(docs))
	for idx, val := range docs {
		ret[idx] = documentToParams(val)
	}
	return ret, nil
}

func (s *SQLDatabase) CreateDocument(ctx context.Context, file params.FileInfo) (params.Document, error) {
	doc := Document{
		FileName:     file.FileName,
		OriginalName: file.OriginalName,
		FilePath:     file.FilePath,
		FileType:     file.FileType,
		FileSize:     file.FileSize,
	}
	if err := s.withCtx(ctx).Create(&doc).Error; err != nil {
		return params.Document{}, translateError(err, "creating document")
	}
	return documentToParams(doc), nil
}

// DeleteDocument removes a document row and returns the path of its file.
func (s *SQLDatabase) DeleteDocument(ctx context.Context, docID uint) (string, error) {
	var filePath string
	err := s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		var doc Document
		q := tx.Where("id = ?", docID).First(&doc)
		if q.Error != nil {
			if errors.Is(q.Error, gorm.ErrRecordNotFound) {
				return nil
			}
			return errors.Wrap(q.Error, "fetching document")
		}
		if err := tx.Delete(&doc).Error; err != nil {
			return errors.Wrap(err, "deleting document")
		}
		filePath = doc.FilePath
		return nil
	})
	if err != nil {
		return "", translateError(err, "removing document")
	}
	return filePath, nil
}
