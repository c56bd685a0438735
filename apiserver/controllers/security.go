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
	"strings"

	"github.com/gabriel-samfira/techdesk/apiserver/middleware"
	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/params"
)

// LoginHandler exchanges the operator password for a bearer token. Banned
// addresses get 403 with the ban window, even with the right password.
func (a *APIController) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var param params.LoginParams
	if err := decodeJSON(w, r, &param); err != nil {
		a.handleError(w, r, err)
		return
	}

	if err := a.guard.Login(r.Context(), middleware.ClientIP(r), param.Password); err != nil {
		a.handleError(w, r, err)
		return
	}

	token, err := a.tokens.Issue()
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, params.LoginResponse{
		Success: true,
		Token:   token,
	})
}

func (a *APIController) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var param params.ChangePasswordParams
	if err := decodeJSON(w, r, &param); err != nil {
		a.handleError(w, r, err)
		return
	}

	if err := a.guard.ChangePassword(r.Context(), param.OldPassword, param.NewPassword); err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendSuccess(w)
}

func (a *APIController) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := a.db.GetSettings(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, settings)
}

// applySettings merges a partial update into the current settings.
func applySettings(current params.Settings, update params.UpdateSettingsParams) (params.Settings, error) {
	if update.SiteTitle != nil {
		title := strings.TrimSpace(*update.SiteTitle)
		if title == "" {
			return params.Settings{}, apperrors.NewBadRequestError("site_title must not be empty")
		}
		current.SiteTitle = title
	}
	if update.MaxLoginAttempts != nil {
		if *update.MaxLoginAttempts < 1 {
			return params.Settings{}, apperrors.NewBadRequestError("max_login_attempts must be at least 1")
		}
		current.MaxLoginAttempts = *update.MaxLoginAttempts
	}
	if update.BanDurationHours != nil {
		if *update.BanDurationHours < 1 {
			return params.Settings{}, apperrors.NewBadRequestError("ban_duration_hours must be at least 1")
		}
		current.BanDurationHours = *update.BanDurationHours
	}
	return current, nil
}

func (a *APIController) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var param params.UpdateSettingsParams
	if err := decodeJSON(w, r, &param); err != nil {
		a.handleError(w, r, err)
		return
	}

	current, err := a.db.GetSettings(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	updated, err := applySettings(current, param)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	settings, err := a.db.UpdateSettings(r.Context(), updated)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, settings)
}

func (a *APIController) ListBannedIPsHandler(w http.ResponseWriter, r *http.Request) {
	bans, err := a.db.ListBannedIPs(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, bans)
}

func (a *APIController) CreateBanHandler(w http.ResponseWriter, r *http.Request) {
	var param params.CreateBanParams
	if err := decodeJSON(w, r, &param); err != nil {
		a.handleError(w, r, err)
		return
	}

	ban, err := a.guard.BanIP(r.Context(), param)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendCreated(w, ban.ID, "")
}

// DeleteBanHandler lifts a ban. Unknown ids succeed.
func (a *APIController) DeleteBanHandler(w http.ResponseWriter, r *http.Request) {
	banID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	if err := a.db.DeleteBannedIP(r.Context(), banID); err != nil {
		a.handleError(w, r, err)
		return
	}
	a.log.Info("ban removed", "ban_id", banID)
	a.sendSuccess(w)
}

func (a *APIController) ListLoginAttemptsHandler(w http.ResponseWriter, r *http.Request) {
	attempts, err := a.db.ListLoginAttempts(r.Context(), loginAttemptsLimit)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, attempts)
}
