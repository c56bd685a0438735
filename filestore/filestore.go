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

// Package filestore keeps uploaded documents and photos. Only the returned
// path is stored in the database.
package filestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/config"
	"github.com/gabriel-samfira/techdesk/params"
)

// URLPrefix is the public path prefix of uploaded files.
const URLPrefix = "/uploads/"

type Kind string

const (
	Documents Kind = "documents"
	Photos    Kind = "photos"
)

func (k Kind) Valid() bool {
	return k == Documents || k == Photos
}

// Store saves, removes and serves uploaded files.
type Store interface {
	Save(ctx context.Context, kind Kind, originalName, contentType string, size int64, r io.Reader) (params.FileInfo, error)
	Remove(ctx context.Context, filePath string) error
	Serve(w http.ResponseWriter, r *http.Request, kind Kind, name string)
}

// New returns the backend selected in the storage config.
func New(ctx context.Context, cfg config.Storage, log *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", config.LocalStorageBackend:
		return NewLocalStore(cfg.UploadDir, log)
	case config.S3StorageBackend:
		return NewS3Store(ctx, cfg.S3, log)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

var extRe = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// objectName returns a unique name made of the upload time and a random
// UUID. The extension of the original name is kept when it looks sane.
func objectName(originalName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(originalName, `\`, "/")))
	if !extRe.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%d-%s%s", now.UnixNano(), uuid.NewString(), ext)
}

// ValidName reports whether name is a plain file name.
func ValidName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// FilePath returns the public path of a stored file.
func FilePath(kind Kind, name string) string {
	return URLPrefix + string(kind) + "/" + name
}

// ParsePath splits a public file path into its kind and name.
func ParsePath(filePath string) (Kind, string, error) {
	rest, ok := strings.CutPrefix(filePath, URLPrefix)
	if !ok {
		return "", "", apperrors.NewBadRequestError("invalid file path %q", filePath)
	}
	kind, name, ok := strings.Cut(rest, "/")
	if !ok || !Kind(kind).Valid() || !ValidName(name) {
		return "", "", apperrors.NewBadRequestError("invalid file path %q", filePath)
	}
	return Kind(kind), name, nil
}

func fileInfo(kind Kind, name, originalName, contentType string, size int64) params.FileInfo {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	original := path.Base(strings.ReplaceAll(originalName, `\`, "/"))
	if original == "." || original == "/" {
		original = name
	}
	return params.FileInfo{
		FileName:     name,
		OriginalName: original,
		FilePath:     FilePath(kind, name),
		FileType:     contentType,
		FileSize:     size,
	}
}
