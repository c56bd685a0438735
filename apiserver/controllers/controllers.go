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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/auth"
	"github.com/gabriel-samfira/techdesk/categories"
	"github.com/gabriel-samfira/techdesk/config"
	"github.com/gabriel-samfira/techdesk/database"
	"github.com/gabriel-samfira/techdesk/filestore"
	"github.com/gabriel-samfira/techdesk/params"
	"github.com/gabriel-samfira/techdesk/security"
)

const (
	maxJSONBody = 1 << 20
	// Multipart parts above this size are spooled to disk.
	multipartMemory = 8 << 20
	// loginAttemptsLimit is the number of entries returned by the audit log.
	loginAttemptsLimit = 100
)

func NewAPIController(db *database.SQLDatabase, guard *security.Guard, tokens *auth.TokenIssuer, cats *categories.Manager, files filestore.Store, cfg config.HTTPServer, log *slog.Logger) (*APIController, error) {
	if db == nil || guard == nil || tokens == nil || cats == nil || files == nil {
		return nil, fmt.Errorf("missing controller dependency")
	}
	return &APIController{
		db:         db,
		guard:      guard,
		tokens:     tokens,
		categories: cats,
		files:      files,
		maxUpload:  cfg.MaxUploadBytes(),
		log:        log.With("component", "api"),
		now:        time.Now,
	}, nil
}

type APIController struct {
	db         *database.SQLDatabase
	guard      *security.Guard
	tokens     *auth.TokenIssuer
	categories *categories.Manager
	files      filestore.Store
	maxUpload  int64
	log        *slog.Logger

	now func() time.Time
}

func (a *APIController) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("failed to encode response", "error", err)
	}
}

func (a *APIController) sendSuccess(w http.ResponseWriter) {
	a.sendJSON(w, http.StatusOK, params.SuccessResponse{Success: true})
}

func (a *APIController) sendCreated(w http.ResponseWriter, id uint, filePath string) {
	a.sendJSON(w, http.StatusOK, params.CreatedResponse{
		ID:       id,
		Success:  true,
		FilePath: filePath,
	})
}

// handleError maps an error class to a status code. Anything unknown is a
// system error: it is logged and the client only gets a generic message.
func (a *APIController) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		banned     *apperrors.BannedError
		badRequest *apperrors.BadRequestError
	)

	resp := params.APIErrorResponse{}
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &banned):
		status = http.StatusForbidden
		resp.Error = banned.Error()
		bannedAt := banned.BannedAt
		resp.BannedAt = &bannedAt
		resp.BannedUntil = banned.BannedUntil
	case errors.As(err, &badRequest):
		status = http.StatusBadRequest
		resp.Error = badRequest.Reason
	case errors.Is(err, apperrors.ErrBadRequest):
		status = http.StatusBadRequest
		resp.Error = "Invalid request"
	case errors.Is(err, apperrors.ErrDuplicate):
		status = http.StatusBadRequest
		resp.Error = "Entity already exists"
	case errors.Is(err, apperrors.ErrUnauthorized):
		status = http.StatusUnauthorized
		resp.Error = "Invalid credentials"
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "Not found"
	default:
		a.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Error = "Internal server error"
	}
	a.sendJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.NewBadRequestError("invalid request body")
	}
	return nil
}

func idVar(r *http.Request) (uint, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperrors.NewBadRequestError("invalid id %q", raw)
	}
	return uint(id), nil
}

// optionalID parses an optional numeric query parameter.
func optionalID(r *http.Request, name string) (*uint, error) {
	return parseOptionalID(r.URL.Query().Get(name), name)
}

func parseOptionalID(raw, name string) (*uint, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, apperrors.NewBadRequestError("invalid %s %q", name, raw)
	}
	ret := uint(id)
	return &ret, nil
}

// NotFoundHandler answers unknown API routes.
func (a *APIController) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	a.sendJSON(w, http.StatusNotFound, params.APIErrorResponse{Error: "Not found"})
}
