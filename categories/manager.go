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

// Package categories manages the category trees of notes, todos, photos and
// the machine guide tags. Photo categories form a two level tree, the other
// kinds are flat.
package categories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/params"
)

const maxNameLength = 100

var colorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type Store interface {
	CreateCategory(ctx context.Context, kind params.CategoryKind, param params.CreateCategoryParams) (params.Category, error)
	GetCategory(ctx context.Context, kind params.CategoryKind, categoryID uint) (params.Category, error)
	ListCategories(ctx context.Context, kind params.CategoryKind) ([]params.Category, error)
	CountCategories(ctx context.Context, kind params.CategoryKind) (int64, error)
	DeleteCategory(ctx context.Context, kind params.CategoryKind, categoryID uint, cascade bool) ([]string, error)
}

// FileRemover deletes uploaded files by their stored path.
type FileRemover interface {
	Remove(ctx context.Context, filePath string) error
}

// RootRef references a root category. It can only be obtained through
// Manager.Root, so a child can never be created under another child.
type RootRef struct {
	kind params.CategoryKind
	id   uint
}

func (r RootRef) ID() uint {
	return r.id
}

func (r RootRef) Kind() params.CategoryKind {
	return r.kind
}

func NewManager(store Store, files FileRemover, log *slog.Logger) *Manager {
	return &Manager{
		store: store,
		files: files,
		log:   log.With("component", "categories"),
	}
}

type Manager struct {
	store Store
	files FileRemover
	log   *slog.Logger
}

// Root resolves categoryID to a root category of the given hierarchical kind.
func (m *Manager) Root(ctx context.Context, kind params.CategoryKind, categoryID uint) (RootRef, error) {
	policy, err := PolicyFor(kind)
	if err != nil {
		return RootRef{}, err
	}
	if !policy.Hierarchical {
		return RootRef{}, apperrors.NewBadRequestError("%s categories cannot be nested", kind)
	}

	parent, err := m.store.GetCategory(ctx, kind, categoryID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return RootRef{}, apperrors.NewBadRequestError("parent category %d does not exist", categoryID)
		}
		return RootRef{}, fmt.Errorf("fetching parent category: %w", err)
	}
	if !parent.IsRoot() {
		return RootRef{}, apperrors.NewBadRequestError("category %d is itself a child and cannot have children", categoryID)
	}
	return RootRef{kind: kind, id: parent.ID}, nil
}

func (m *Manager) prepare(ctx context.Context, kind params.CategoryKind, policy Policy, param params.CreateCategoryParams) (params.CreateCategoryParams, error) {
	name := strings.TrimSpace(param.Name)
	if name == "" {
		return param, apperrors.NewBadRequestError("name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return param, apperrors.NewBadRequestError("name must be at most %d characters long", maxNameLength)
	}
	param.Name = name

	if !policy.Colored {
		param.Color = ""
		return param, nil
	}
	if param.Color != "" {
		if !colorRe.MatchString(param.Color) {
			return param, apperrors.NewBadRequestError("invalid color %q, expected #RRGGBB", param.Color)
		}
		return param, nil
	}

	count, err := m.store.CountCategories(ctx, kind)
	if err != nil {
		return param, fmt.Errorf("counting categories: %w", err)
	}
	param.Color = PaletteColor(int(count))
	return param, nil
}

func (m *Manager) create(ctx context.Context, kind params.CategoryKind, param params.CreateCategoryParams) (params.Category, error) {
	cat, err := m.store.CreateCategory(ctx, kind, param)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return params.Category{}, apperrors.NewBadRequestError("%q already exists", param.Name)
		}
		return params.Category{}, err
	}
	return cat, nil
}

// CreateCategory creates a root category, or a child when ParentID is set.
// Colored kinds get the next palette color when none is given.
func (m *Manager) CreateCategory(ctx context.Context, kind params.CategoryKind, param params.CreateCategoryParams) (params.Category, error) {
	policy, err := PolicyFor(kind)
	if err != nil {
		return params.Category{}, err
	}
	if param.ParentID != nil {
		parent, err := m.Root(ctx, kind, *param.ParentID)
		if err != nil {
			return params.Category{}, err
		}
		return m.CreateChild(ctx, parent, param)
	}

	param, err = m.prepare(ctx, kind, policy, param)
	if err != nil {
		return params.Category{}, err
	}
	return m.create(ctx, kind, param)
}

// CreateChild creates a category under parent.
func (m *Manager) CreateChild(ctx context.Context, parent RootRef, param params.CreateCategoryParams) (params.Category, error) {
	policy, err := PolicyFor(parent.kind)
	if err != nil {
		return params.Category{}, err
	}
	param, err = m.prepare(ctx, parent.kind, policy, param)
	if err != nil {
		return params.Category{}, err
	}
	parentID := parent.id
	param.ParentID = &parentID
	return m.create(ctx, parent.kind, param)
}

// ListTree returns the roots of a kind, newest first, each with its children
// in the same order. Guide tags are sorted by name.
func (m *Manager) ListTree(ctx context.Context, kind params.CategoryKind) ([]params.Category, error) {
	if _, err := PolicyFor(kind); err != nil {
		return nil, err
	}
	flat, err := m.store.ListCategories(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return buildForest(flat), nil
}

// buildForest keeps the order of flat for roots and for the children of each
// root. Children whose parent is missing are promoted to roots.
func buildForest(flat []params.Category) []params.Category {
	known := make(map[uint]bool, len(flat))
	for _, cat := range flat {
		known[cat.ID] = true
	}

	children := map[uint][]params.Category{}
	for _, cat := range flat {
		if cat.ParentID != nil && known[*cat.ParentID] {
			children[*cat.ParentID] = append(children[*cat.ParentID], cat)
		}
	}

	forest := []params.Category{}
	for _, cat := range flat {
		if cat.ParentID != nil && known[*cat.ParentID] {
			continue
		}
		cat.Children = children[cat.ID]
		forest = append(forest, cat)
	}
	return forest
}

// DeleteCategory removes a category following the policy of its kind. Files
// of removed photos are deleted after the fact; failures there are logged
// and do not fail the call.
func (m *Manager) DeleteCategory(ctx context.Context, kind params.CategoryKind, categoryID uint) error {
	policy, err := PolicyFor(kind)
	if err != nil {
		return err
	}

	removed, err := m.store.DeleteCategory(ctx, kind, categoryID, policy.CascadeItems)
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	if !policy.RemovesFiles || m.files == nil {
		return nil
	}
	for _, filePath := range removed {
		if err := m.files.Remove(ctx, filePath); err != nil {
			m.log.Warn("failed to remove file of deleted item", "path", filePath, "error", err)
		}
	}
	return nil
}
