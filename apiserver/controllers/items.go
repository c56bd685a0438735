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

	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/params"
)

func validateNote(param params.NoteParams) (params.NoteParams, error) {
	param.Title = strings.TrimSpace(param.Title)
	if param.Title == "" {
		return params.NoteParams{}, apperrors.NewBadRequestError("title is required")
	}
	return param, nil
}

func (a *APIController) ListNotesHandler(w http.ResponseWriter, r *http.Request) {
	categoryID, err := optionalID(r, "category_id")
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	notes, err := a.db.ListNotes(r.Context(), categoryID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, notes)
}

func (a *APIController) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	var param params.NoteParams
	if err := decodeJSON(w, r, &param); err != nil {
		a.handleError(w, r, err)
		return
	}
	param, err := validateNote(param)
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	note, err := a.db.CreateNote(r.Context(), param)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendCreated(w, note.ID, "")
}

// UpdateNoteHandler replaces title, content and category of a note.
func (a *APIController) UpdateNoteHandler(w http.ResponseWriter, r *http.Request) {
	noteID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	var param params.NoteParams
	if err := decodeJSON(w, r, &param); err != nil {
		a.handleError(w, r, err)
		return
	}
	param, err = validateNote(param)
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	if err := a.db.UpdateNote(r.Context(), noteID, param); err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendSuccess(w)
}

func (a *APIController) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	noteID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	if err := a.db.DeleteNote(r.Context(), noteID); err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendSuccess(w)
}

func (a *APIController) ListTodosHandler(w http.ResponseWriter, r *http.Request) {
	categoryID, err := optionalID(r, "category_id")
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	todos, err := a.db.ListTodos(r.Context(), categoryID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, todos)
}

func (a *APIController) CreateTodoHandler(w http.ResponseWriter, r *http.Request) {
	var param params.CreateTodoParams
	if err := decodeJSON(w, r, &param); err != nil {
		a.handleError(w, r, err)
		return
	}
	param.Task = strings.TrimSpace(param.Task)
	if param.Task == "" {
		a.handleError(w, r, apperrors.NewBadRequestError("task is required"))
		return
	}

	todo, err := a.db.CreateTodo(r.Context(), param)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendCreated(w, todo.ID, "")
}

func (a *APIController) UpdateTodoHandler(w http.ResponseWriter, r *http.Request) {
	todoID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	var param params.UpdateTodoParams
	if err := decodeJSON(w, r, &param); err != nil {
		a.handleError(w, r, err)
		return
	}
	if param.Task != nil {
		task := strings.TrimSpace(*param.Task)
		if task == "" {
			a.handleError(w, r, apperrors.NewBadRequestError("task must not be empty"))
			return
		}
		param.Task = &task
	}

	if err := a.db.UpdateTodo(r.Context(), todoID, param); err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendSuccess(w)
}

func (a *APIController) DeleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	todoID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	if err := a.db.DeleteTodo(r.Context(), todoID); err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendSuccess(w)
}
