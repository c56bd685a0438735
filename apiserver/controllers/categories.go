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

package controllers

import (
	"net/http"

	"github.com/gabriel-samfira/techdesk/params"
)

// The category handlers are shared by every category kind. Photo categories
// are returned as a forest, the other kinds as a flat list of roots.

func (a *APIController) ListCategoriesHandler(kind params.CategoryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tree, err := a.categories.ListTree(r.Context(), kind)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		a.sendJSON(w, http.StatusOK, tree)
	}
}

func (a *APIController) CreateCategoryHandler(kind params.CategoryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var param params.CreateCategoryParams
		if err := decodeJSON(w, r, &param); err != nil {
			a.handleError(w, r, err)
			return
		}

		category, err := a.categories.CreateCategory(r.Context(), kind, param)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		a.sendCreated(w, category.ID, "")
	}
}

func (a *APIController) DeleteCategoryHandler(kind params.CategoryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categoryID, err := idVar(r)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		if err := a.categories.DeleteCategory(r.Context(), kind, categoryID); err != nil {
			a.handleError(w, r, err)
			return
		}
		a.sendSuccess(w)
	}
}
