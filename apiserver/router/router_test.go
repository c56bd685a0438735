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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gabriel-samfira/techdesk/apiserver/controllers"
	"github.com/gabriel-samfira/techdesk/auth"
	"github.com/gabriel-samfira/techdesk/categories"
	"github.com/gabriel-samfira/techdesk/config"
	"github.com/gabriel-samfira/techdesk/database"
	"github.com/gabriel-samfira/techdesk/export"
	"github.com/gabriel-samfira/techdesk/filestore"
	"github.com/gabriel-samfira/techdesk/params"
	"github.com/gabriel-samfira/techdesk/security"
)

const (
	testPassword = "632536"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

type testServer struct {
	t         *testing.T
	handler   http.Handler
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	db, err := database.NewSQLDatabase(ctx, config.Database{SQLiteFile: filepath.Join(dir, "techdesk.db")}, log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	guard := security.NewGuard(db, bcrypt.MinCost, log)
	require.NoError(t, guard.Bootstrap(ctx, testPassword))

	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	uploadDir := filepath.Join(dir, "uploads")
	files, err := filestore.NewLocalStore(uploadDir, log)
	require.NoError(t, err)

	cats := categories.NewManager(db, files, log)
	ctrl, err := controllers.NewAPIController(db, guard, tokens, cats, files, config.HTTPServer{RequestsPerWindow: 10000}, log)
	require.NoError(t, err)

	return &testServer{
		t:         t,
		handler:   NewAPIRouter(ctrl, auth.NewMiddleware(tokens, log), config.HTTPServer{RequestsPerWindow: 10000}, log),
		uploadDir: uploadDir,
	}
}

func (s *testServer) do(req *http.Request, ip, token string) *httptest.ResponseRecorder {
	req.RemoteAddr = ip + ":40000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(method, path, ip, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, ip, token)
}

func (s *testServer) login(ip, password string) *httptest.ResponseRecorder {
	return s.doJSON(http.MethodPost, "/api/auth/login", ip, "", params.LoginParams{Password: password})
}

func (s *testServer) token(ip string) string {
	rec := s.login(ip, testPassword)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp params.LoginResponse
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(s.t, resp.Success)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLoginBanAndUnban(t *testing.T) {
	srv := newTestServer(t)
	const attacker = "1.2.3.4"

	for i := 0; i < 3; i++ {
		rec := srv.login(attacker, "wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	start := time.Now()
	rec := srv.login(attacker, testPassword)
	require.Equal(t, http.StatusForbidden, rec.Code)
	banned := decode[params.APIErrorResponse](t, rec)
	require.NotNil(t, banned.BannedAt)
	require.NotNil(t, banned.BannedUntil)
	assert.WithinDuration(t, start.Add(24*time.Hour), *banned.BannedUntil, time.Minute)

	token := srv.token("5.6.7.8")
	rec = srv.doJSON(http.MethodGet, "/api/banned-ips", "5.6.7.8", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bans := decode[[]params.BannedIP](t, rec)
	require.Len(t, bans, 1)
	assert.Equal(t, attacker, bans[0].IPAddress)

	rec = srv.doJSON(http.MethodDelete, fmt.Sprintf("/api/banned-ips/%d", bans[0].ID), "5.6.7.8", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The ban is gone and so are the failures that caused it.
	token = srv.token(attacker)
	rec = srv.doJSON(http.MethodGet, "/api/notes", attacker, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.doJSON(http.MethodGet, "/api/login-attempts", attacker, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attempts := decode[[]params.LoginAttempt](t, rec)
	assert.NotEmpty(t, attempts)
	assert.True(t, attempts[0].Success)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.doJSON(http.MethodGet, "/api/notes", "10.0.0.1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.doJSON(http.MethodGet, "/api/notes", "10.0.0.1", "garbage", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Settings can be read before logging in.
	rec = srv.doJSON(http.MethodGet, "/api/settings", "10.0.0.1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tech Support", decode[params.Settings](t, rec).SiteTitle)

	rec = srv.doJSON(http.MethodPut, "/api/settings", "10.0.0.1", "", params.UpdateSettingsParams{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := srv.token("10.0.0.1")
	rec = srv.doJSON(http.MethodGet, "/api/nothing-here", "10.0.0.1", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsUpdate(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token("10.0.0.1")

	zero := 0
	rec := srv.doJSON(http.MethodPut, "/api/settings", "10.0.0.1", token, params.UpdateSettingsParams{MaxLoginAttempts: &zero})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	title := "Helpdesk"
	rec = srv.doJSON(http.MethodPut, "/api/settings", "10.0.0.1", token, params.UpdateSettingsParams{SiteTitle: &title})
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decode[params.Settings](t, rec)
	assert.Equal(t, params.Settings{SiteTitle: "Helpdesk", MaxLoginAttempts: 3, BanDurationHours: 24}, settings)
}

func TestChangePassword(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token("10.0.0.1")

	rec := srv.doJSON(http.MethodPost, "/api/auth/change-password", "10.0.0.1", token, params.ChangePasswordParams{OldPassword: testPassword, NewPassword: "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.doJSON(http.MethodPost, "/api/auth/change-password", "10.0.0.1", token, params.ChangePasswordParams{OldPassword: "nope", NewPassword: "abcdef"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.doJSON(http.MethodPost, "/api/auth/change-password", "10.0.0.1", token, params.ChangePasswordParams{OldPassword: testPassword, NewPassword: "abcdef"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, srv.login("10.0.0.1", "abcdef").Code)
}

func TestManualBan(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token("10.0.0.1")

	rec := srv.doJSON(http.MethodPost, "/api/banned-ips", "10.0.0.1", token, params.CreateBanParams{IPAddress: "9.9.9.9", Permanent: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.doJSON(http.MethodPost, "/api/banned-ips", "10.0.0.1", token, params.CreateBanParams{IPAddress: "9.9.9.9"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.doJSON(http.MethodPost, "/api/banned-ips", "10.0.0.1", token, params.CreateBanParams{IPAddress: "not an ip"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.login("9.9.9.9", testPassword)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, decode[params.APIErrorResponse](t, rec).BannedUntil)

	rec = srv.doJSON(http.MethodDelete, "/api/banned-ips/4242", "10.0.0.1", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func uploadPhoto(t *testing.T, srv *testServer, token string, categoryID uint) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("category_id", fmt.Sprint(categoryID)))
	require.NoError(t, mw.WriteField("description", "front panel"))
	part, err := mw.CreateFormFile("file", "inkjet.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("not really a jpeg"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/photos/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return srv.do(req, "10.0.0.1", token)
}

func TestPhotoCategoryCascade(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token("10.0.0.1")

	rec := srv.doJSON(http.MethodPost, "/api/photo-categories", "10.0.0.1", token, params.CreateCategoryParams{Name: "Printers"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	root := decode[params.CreatedResponse](t, rec).ID

	rec = srv.doJSON(http.MethodPost, "/api/photo-categories", "10.0.0.1", token, params.CreateCategoryParams{Name: "Inkjet", ParentID: &root})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	child := decode[params.CreatedResponse](t, rec).ID

	rec = srv.doJSON(http.MethodPost, "/api/photo-categories", "10.0.0.1", token, params.CreateCategoryParams{Name: "Too deep", ParentID: &child})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = uploadPhoto(t, srv, token, child)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	photo := decode[params.CreatedResponse](t, rec)
	require.True(t, strings.HasPrefix(photo.FilePath, "/uploads/photos/"))

	rec = srv.doJSON(http.MethodGet, fmt.Sprintf("/api/photos/%d", photo.ID), "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "front panel", decode[params.Photo](t, rec).Description)

	rec = srv.doJSON(http.MethodGet, photo.FilePath, "10.0.0.1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not really a jpeg", rec.Body.String())

	rec = srv.doJSON(http.MethodGet, "/api/photo-categories", "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode[[]params.Category](t, rec)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "Inkjet", tree[0].Children[0].Name)

	rec = srv.doJSON(http.MethodDelete, fmt.Sprintf("/api/photo-categories/%d", root), "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.doJSON(http.MethodGet, "/api/photo-categories", "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]params.Category](t, rec))

	rec = srv.doJSON(http.MethodGet, fmt.Sprintf("/api/photos/%d", photo.ID), "10.0.0.1", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	entries, err := os.ReadDir(filepath.Join(srv.uploadDir, "photos"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadRejectsUnknownCategory(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token("10.0.0.1")

	rec := uploadPhoto(t, srv, token, 77)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	entries, err := os.ReadDir(filepath.Join(srv.uploadDir, "photos"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNotesAndTodos(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token("10.0.0.1")

	rec := srv.doJSON(http.MethodPost, "/api/note-categories", "10.0.0.1", token, params.CreateCategoryParams{Name: "Network"})
	require.Equal(t, http.StatusOK, rec.Code)
	noteCat := decode[params.CreatedResponse](t, rec).ID

	rec = srv.doJSON(http.MethodPost, "/api/notes", "10.0.0.1", token, params.NoteParams{Title: " ", Content: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.doJSON(http.MethodPost, "/api/notes", "10.0.0.1", token, params.NoteParams{Title: "VPN", Content: "<p>restart</p>", CategoryID: &noteCat})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.doJSON(http.MethodDelete, fmt.Sprintf("/api/note-categories/%d", noteCat), "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.doJSON(http.MethodGet, "/api/notes", "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[[]params.Note](t, rec)
	require.Len(t, notes, 1)
	assert.Nil(t, notes[0].CategoryID)

	rec = srv.doJSON(http.MethodPost, "/api/todo-categories", "10.0.0.1", token, params.CreateCategoryParams{Name: "Today"})
	require.Equal(t, http.StatusOK, rec.Code)
	todoCat := decode[params.CreatedResponse](t, rec).ID

	rec = srv.doJSON(http.MethodPost, "/api/todos", "10.0.0.1", token, params.CreateTodoParams{Task: "Replace toner", CategoryID: &todoCat})
	require.Equal(t, http.StatusOK, rec.Code)
	todoID := decode[params.CreatedResponse](t, rec).ID

	done := true
	rec = srv.doJSON(http.MethodPut, fmt.Sprintf("/api/todos/%d", todoID), "10.0.0.1", token, params.UpdateTodoParams{Completed: &done})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.doJSON(http.MethodGet, fmt.Sprintf("/api/todos?category_id=%d", todoCat), "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	todos := decode[[]params.Todo](t, rec)
	require.Len(t, todos, 1)
	assert.True(t, todos[0].Completed)

	rec = srv.doJSON(http.MethodDelete, fmt.Sprintf("/api/todo-categories/%d", todoCat), "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.doJSON(http.MethodGet, "/api/todos", "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]params.Todo](t, rec))

	rec = srv.doJSON(http.MethodGet, "/api/todos?category_id=abc", "10.0.0.1", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMachineGuide(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token("10.0.0.1")

	rec := srv.doJSON(http.MethodPost, "/api/machine-guide-tags", "10.0.0.1", token, params.CreateCategoryParams{Name: "wifi"})
	require.Equal(t, http.StatusOK, rec.Code)
	tagID := decode[params.CreatedResponse](t, rec).ID

	rec = srv.doJSON(http.MethodPost, "/api/machine-guide-tags", "10.0.0.1", token, params.CreateCategoryParams{Name: "wifi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.doJSON(http.MethodPost, "/api/machine-guide", "10.0.0.1", token, params.GuideEntryParams{
		Title:    "No <b>signal</b>",
		Problem:  "Laptop cannot see the network",
		Solution: "<p>Toggle airplane mode</p>",
		TagIDs:   []uint{tagID, tagID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entryID := decode[params.CreatedResponse](t, rec).ID

	rec = srv.doJSON(http.MethodPost, "/api/machine-guide", "10.0.0.1", token, params.GuideEntryParams{Title: "Slow boot", Solution: "Disable startup apps"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.doJSON(http.MethodGet, fmt.Sprintf("/api/machine-guide?tag_id=%d", tagID), "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]params.GuideEntry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, entryID, entries[0].ID)
	require.Len(t, entries[0].Tags, 1)

	rec = srv.doJSON(http.MethodGet, "/api/machine-guide?q=startup", "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries = decode[[]params.GuideEntry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "Slow boot", entries[0].Title)

	rec = srv.doJSON(http.MethodGet, "/api/machine-guide/export", "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "machine-guide-")
	assert.NotZero(t, rec.Body.Len())

	rec = srv.doJSON(http.MethodDelete, fmt.Sprintf("/api/machine-guide-tags/%d", tagID), "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.doJSON(http.MethodGet, fmt.Sprintf("/api/machine-guide/%d", entryID), "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[params.GuideEntry](t, rec).Tags)
}

func TestDocuments(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token("10.0.0.1")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "manual.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := srv.do(req, "10.0.0.1", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[params.CreatedResponse](t, rec)

	rec = srv.doJSON(http.MethodGet, "/api/documents", "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[[]params.Document](t, rec)
	require.Len(t, docs, 1)
	assert.Equal(t, "manual.pdf", docs[0].OriginalName)

	rec = srv.doJSON(http.MethodDelete, fmt.Sprintf("/api/documents/%d", created.ID), "10.0.0.1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = os.Stat(filepath.Join(srv.uploadDir, "documents", docs[0].FileName))
	assert.True(t, os.IsNotExist(err))

	// Missing file part.
	req = httptest.NewRequest(http.MethodPost, "/api/documents/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec = srv.do(req, "10.0.0.1", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
