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
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/filestore"
	"github.com/gabriel-samfira/techdesk/params"
)

// parseUpload parses a multipart request and returns the "file" part.
// The caller must close the file and call form.RemoveAll.
func (a *APIController) parseUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	// Leave room for the other form fields.
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, apperrors.NewBadRequestError("file exceeds the %d MB upload limit", a.maxUpload>>20)
		}
		return nil, nil, apperrors.NewBadRequestError("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		r.MultipartForm.RemoveAll()
		return nil, nil, apperrors.NewBadRequestError("no file uploaded")
	}
	if header.Size > a.maxUpload {
		file.Close()
		r.MultipartForm.RemoveAll()
		return nil, nil, apperrors.NewBadRequestError("file exceeds the %d MB upload limit", a.maxUpload>>20)
	}
	return file, header, nil
}

func (a *APIController) saveUpload(ctx context.Context, kind filestore.Kind, file multipart.File, header *multipart.FileHeader) (params.FileInfo, error) {
	return a.files.Save(ctx, kind, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
}

// removeFile deletes an uploaded file once its row is gone. Failures only
// leave an orphan behind, so they are logged and otherwise ignored.
func (a *APIController) removeFile(ctx context.Context, filePath string) {
	if filePath == "" {
		return
	}
	if err := a.files.Remove(ctx, filePath); err != nil {
		a.log.Warn("failed to remove uploaded file", "path", filePath, "error", err)
	}
}

func (a *APIController) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := a.db.ListDocuments(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, docs)
}

func (a *APIController) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	file, header, err := a.parseUpload(w, r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()
	defer file.Close()

	info, err := a.saveUpload(r.Context(), filestore.Documents, file, header)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	doc, err := a.db.CreateDocument(r.Context(), info)
	if err != nil {
		a.removeFile(r.Context(), info.FilePath)
		a.handleError(w, r, err)
		return
	}
	a.sendCreated(w, doc.ID, doc.FilePath)
}

func (a *APIController) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	docID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	filePath, err := a.db.DeleteDocument(r.Context(), docID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.removeFile(r.Context(), filePath)
	a.sendSuccess(w)
}

func (a *APIController) ListPhotosHandler(w http.ResponseWriter, r *http.Request) {
	categoryID, err := optionalID(r, "category_id")
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	photos, err := a.db.ListPhotos(r.Context(), categoryID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, photos)
}

func (a *APIController) GetPhotoHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	photo, err := a.db.GetPhoto(r.Context(), photoID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendJSON(w, http.StatusOK, photo)
}

// UploadPhotoHandler stores a photo with an optional category_id and
// description sent as form fields next to the file.
func (a *APIController) UploadPhotoHandler(w http.ResponseWriter, r *http.Request) {
	file, header, err := a.parseUpload(w, r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()
	defer file.Close()

	categoryID, err := parseOptionalID(r.FormValue("category_id"), "category_id")
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	if categoryID != nil {
		if _, err := a.db.GetCategory(r.Context(), params.PhotoCategory, *categoryID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				err = apperrors.NewBadRequestError("photo category %d does not exist", *categoryID)
			}
			a.handleError(w, r, err)
			return
		}
	}

	info, err := a.saveUpload(r.Context(), filestore.Photos, file, header)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	description := strings.TrimSpace(r.FormValue("description"))
	photo, err := a.db.CreatePhoto(r.Context(), categoryID, description, info)
	if err != nil {
		a.removeFile(r.Context(), info.FilePath)
		a.handleError(w, r, err)
		return
	}
	a.sendCreated(w, photo.ID, photo.FilePath)
}

func (a *APIController) UpdatePhotoHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	var param params.UpdatePhotoParams
	if err := decodeJSON(w, r, &param); err != nil {
		a.handleError(w, r, err)
		return
	}
	param.Description = strings.TrimSpace(param.Description)
	if err := a.db.UpdatePhoto(r.Context(), photoID, param); err != nil {
		a.handleError(w, r, err)
		return
	}
	a.sendSuccess(w)
}

func (a *APIController) DeletePhotoHandler(w http.ResponseWriter, r *http.Request) {
	photoID, err := idVar(r)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	filePath, err := a.db.DeletePhoto(r.Context(), photoID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.removeFile(r.Context(), filePath)
	a.sendSuccess(w)
}

// ServeUploadHandler serves /uploads/{kind}/{name}. It is public so the
// files can be used directly in img and a tags.
func (a *APIController) ServeUploadHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	a.files.Serve(w, r, filestore.Kind(vars["kind"]), vars["name"])
}
