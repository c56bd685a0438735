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

package filestore

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabriel-samfira/techdesk/apperrors"
)

func newTestLocalStore(t *testing.T) (*LocalStore, string) {
	t.Helper()
	root := t.TempDir()
	store, err := NewLocalStore(root, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store, root
}

func TestLocalSaveServeRemove(t *testing.T) {
	ctx := context.Background()
	store, root := newTestLocalStore(t)

	info, err := store.Save(ctx, Photos, `C:\Users\me\Printer.JPG`, "image/jpeg", 5, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "Printer.JPG", info.OriginalName)
	assert.Equal(t, "image/jpeg", info.FileType)
	assert.Equal(t, int64(5), info.FileSize)
	assert.True(t, strings.HasSuffix(info.FileName, ".jpg"))
	assert.Equal(t, "/uploads/photos/"+info.FileName, info.FilePath)

	data, err := os.ReadFile(filepath.Join(root, "photos", info.FileName))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// Only the final file is left behind.
	entries, err := os.ReadDir(filepath.Join(root, "photos"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	req := httptest.NewRequest(http.MethodGet, info.FilePath, nil)
	rec := httptest.NewRecorder()
	store.Serve(rec, req, Photos, info.FileName)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())

	require.NoError(t, store.Remove(ctx, info.FilePath))
	require.NoError(t, store.Remove(ctx, info.FilePath))
	_, err = os.Stat(filepath.Join(root, "photos", info.FileName))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalServeRejectsTraversal(t *testing.T) {
	store, _ := newTestLocalStore(t)

	for _, name := range []string{"../secret", "..", ".hidden", "a/b", ""} {
		req := httptest.NewRequest(http.MethodGet, "/uploads/photos/x", nil)
		rec := httptest.NewRecorder()
		store.Serve(rec, req, Photos, name)
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
	}

	req := httptest.NewRequest(http.MethodGet, "/uploads/secrets/x", nil)
	rec := httptest.NewRecorder()
	store.Serve(rec, req, Kind("secrets"), "x")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParsePath(t *testing.T) {
	kind, name, err := ParsePath("/uploads/documents/1-abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, Documents, kind)
	assert.Equal(t, "1-abc.pdf", name)

	for _, p := range []string{"/etc/passwd", "/uploads/photos/../x", "/uploads/other/x", "/uploads/photos/"} {
		_, _, err := ParsePath(p)
		assert.ErrorIs(t, err, apperrors.ErrBadRequest, p)
	}
}

func TestObjectName(t *testing.T) {
	now := time.Unix(0, 1700000000000000000)
	assert.True(t, strings.HasPrefix(objectName("a.PNG", now), "1700000000000000000-"))
	assert.True(t, strings.HasSuffix(objectName("a.PNG", now), ".png"))
	assert.False(t, strings.Contains(objectName("evil.ph p", now), " "))
	assert.NotEqual(t, objectName("a.png", now), objectName("a.png", now))
}
