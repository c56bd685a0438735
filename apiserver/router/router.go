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

package router

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gabriel-samfira/techdesk/apiserver/controllers"
	"github.com/gabriel-samfira/techdesk/apiserver/middleware"
	"github.com/gabriel-samfira/techdesk/auth"
	"github.com/gabriel-samfira/techdesk/config"
	"github.com/gabriel-samfira/techdesk/params"
)

// categoryRoutes maps the URL segment of each category collection to its kind.
var categoryRoutes = map[string]params.CategoryKind{
	"note-categories":    params.NoteCategory,
	"todo-categories":    params.TodoCategory,
	"photo-categories":   params.PhotoCategory,
	"machine-guide-tags": params.GuideTag,
}

// NewAPIRouter wires every route. The filters run outside the mux so CORS
// preflights and rate limiting also cover unmatched paths.
func NewAPIRouter(han *controllers.APIController, authMw *auth.Middleware, cfg config.HTTPServer, log *slog.Logger) http.Handler {
	router := mux.NewRouter()

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.NotFoundHandler = http.HandlerFunc(han.NotFoundHandler)

	// Public
	apiRouter.Handle("/auth/login", http.HandlerFunc(han.LoginHandler)).Methods("POST")
	apiRouter.Handle("/settings", http.HandlerFunc(han.GetSettingsHandler)).Methods("GET")

	// Auth and security
	apiRouter.Handle("/auth/change-password", authMw.WrapFunc(han.ChangePasswordHandler)).Methods("POST")
	apiRouter.Handle("/settings", authMw.WrapFunc(han.UpdateSettingsHandler)).Methods("PUT")
	apiRouter.Handle("/banned-ips", authMw.WrapFunc(han.ListBannedIPsHandler)).Methods("GET")
	apiRouter.Handle("/banned-ips", authMw.WrapFunc(han.CreateBanHandler)).Methods("POST")
	apiRouter.Handle("/banned-ips/{id:[0-9]+}", authMw.WrapFunc(han.DeleteBanHandler)).Methods("DELETE")
	apiRouter.Handle("/login-attempts", authMw.WrapFunc(han.ListLoginAttemptsHandler)).Methods("GET")

	// Categories
	for segment, kind := range categoryRoutes {
		apiRouter.Handle("/"+segment, authMw.Wrap(han.ListCategoriesHandler(kind))).Methods("GET")
		apiRouter.Handle("/"+segment, authMw.Wrap(han.CreateCategoryHandler(kind))).Methods("POST")
		apiRouter.Handle("/"+segment+"/{id:[0-9]+}", authMw.Wrap(han.DeleteCategoryHandler(kind))).Methods("DELETE")
	}

	// Notes
	apiRouter.Handle("/notes", authMw.WrapFunc(han.ListNotesHandler)).Methods("GET")
	apiRouter.Handle("/notes", authMw.WrapFunc(han.CreateNoteHandler)).Methods("POST")
	apiRouter.Handle("/notes/{id:[0-9]+}", authMw.WrapFunc(han.UpdateNoteHandler)).Methods("PUT")
	apiRouter.Handle("/notes/{id:[0-9]+}", authMw.WrapFunc(han.DeleteNoteHandler)).Methods("DELETE")

	// Todos
	apiRouter.Handle("/todos", authMw.WrapFunc(han.ListTodosHandler)).Methods("GET")
	apiRouter.Handle("/todos", authMw.WrapFunc(han.CreateTodoHandler)).Methods("POST")
	apiRouter.Handle("/todos/{id:[0-9]+}", authMw.WrapFunc(han.UpdateTodoHandler)).Methods("PUT")
	apiRouter.Handle("/todos/{id:[0-9]+}", authMw.WrapFunc(han.DeleteTodoHandler)).Methods("DELETE")

	// Documents
	apiRouter.Handle("/documents", authMw.WrapFunc(han.ListDocumentsHandler)).Methods("GET")
	apiRouter.Handle("/documents/upload", authMw.WrapFunc(han.UploadDocumentHandler)).Methods("POST")
	apiRouter.Handle("/documents/{id:[0-9]+}", authMw.WrapFunc(han.DeleteDocumentHandler)).Methods("DELETE")

	// Photos
	apiRouter.Handle("/photos", authMw.WrapFunc(han.ListPhotosHandler)).Methods("GET")
	apiRouter.Handle("/photos/upload", authMw.WrapFunc(han.UploadPhotoHandler)).Methods("POST")
	apiRouter.Handle("/photos/{id:[0-9]+}", authMw.WrapFunc(han.GetPhotoHandler)).Methods("GET")
	apiRouter.Handle("/photos/{id:[0-9]+}", authMw.WrapFunc(han.UpdatePhotoHandler)).Methods("PUT")
	apiRouter.Handle("/photos/{id:[0-9]+}", authMw.WrapFunc(han.DeletePhotoHandler)).Methods("DELETE")

	// Machine guide
	apiRouter.Handle("/machine-guide", authMw.WrapFunc(han.ListGuideHandler)).Methods("GET")
	apiRouter.Handle("/machine-guide", authMw.WrapFunc(han.CreateGuideEntryHandler)).Methods("POST")
	apiRouter.Handle("/machine-guide/export", authMw.WrapFunc(han.ExportGuideHandler)).Methods("GET")
	apiRouter.Handle("/machine-guide/{id:[0-9]+}", authMw.WrapFunc(han.GetGuideEntryHandler)).Methods("GET")
	apiRouter.Handle("/machine-guide/{id:[0-9]+}", authMw.WrapFunc(han.UpdateGuideEntryHandler)).Methods("PUT")
	apiRouter.Handle("/machine-guide/{id:[0-9]+}", authMw.WrapFunc(han.DeleteGuideEntryHandler)).Methods("DELETE")

	// Uploaded files
	router.HandleFunc("/uploads/{kind}/{name}", han.ServeUploadHandler).Methods("GET", "HEAD")

	if cfg.WebRoot != "" {
		router.PathPrefix("/").Handler(newSPAHandler(cfg.WebRoot)).Methods("GET", "HEAD")
	}

	requests, window := cfg.RateLimit()
	limiter := middleware.NewRateLimiter(requests, window)

	var handler http.Handler = router
	handler = limiter.Middleware(handler)
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.Logging(log)(handler)
	handler = middleware.RealIP(cfg.TrustProxyHeaders)(handler)
	return handler
}
