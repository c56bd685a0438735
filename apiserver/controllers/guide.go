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
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/export"
	"github.com/gabriel-samfira/techdesk/params"
)

func validateGuideEntry(param params.GuideEntryParams) (params.GuideEntryParams, error) {
	param.Title = strings.TrimSpace(param.Title)
	if param.Title == "" {
		return params.GuideEntryParams{}, apperrors.NewBadRequestError("title is required")
	}
	return param, nil
}

// ListGuideHandler lists machine guide entries, optionally filtered by
// tag_id and a free text q.
func (a *APIController) ListGuideHandler(w http.ResponseWriter, r *http.Request) {
	tagID, err := optionalID(r, "tag_id")
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	filter := params.GuideFilter{
		TagID: tagID,
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
	}

	entries, err := a.db.ListGuideEntries(r.Context(), filter)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, entries)
}

func (a *APIController) GetGuideEntryHandler(w http.ResponseWriter, r *http.Request) {
	entryID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	entry, err := a.db.GetGuideEntry(r.Context(), entryID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, entry)
}

func (a *APIController) CreateGuideEntryHandler(w http.ResponseWriter, r *http.Request) {
	var param params.GuideEntryParams
	if err := decodeJSON(w, r, &param); err != nil {
		a.handleError(w, r, err)
		return
	}
	param, err := validateGuideEntry(param)
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	entry, err := a.db.CreateGuideEntry(r.Context(), param)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendCreated(w, entry.ID, "")
}

// UpdateGuideEntryHandler replaces the entry, including its tag set.
func (a *APIController) UpdateGuideEntryHandler(w http.ResponseWriter, r *http.Request) {
	entryID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	var param params.GuideEntryParams
	if err := decodeJSON(w, r, &param); err != nil {
		a.handleError(w, r, err)
		return
	}
	param, err = validateGuideEntry(param)
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	if err := a.db.UpdateGuideEntry(r.Context(), entryID, param); err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendSuccess(w)
}

func (a *APIController) DeleteGuideEntryHandler(w http.ResponseWriter, r *http.Request) {
	entryID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	if err := a.db.DeleteGuideEntry(r.Context(), entryID); err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendSuccess(w)
}

// ExportGuideHandler sends every guide entry as an xlsx attachment. The
// workbook is built in memory so a failure can still produce a JSON error.
func (a *APIController) ExportGuideHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := a.db.ListGuideEntries(r.Context(), params.GuideFilter{})
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteGuide(&buf, entries); err != nil {
		a.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.FileName(a.now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		a.log.Warn("failed to send export", "error", err)
	}
}
