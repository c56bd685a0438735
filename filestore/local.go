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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-samfira/techdesk/params"
)

func NewLocalStore(root string, log *slog.Logger) (*LocalStore, error) {
	for _, kind := range []Kind{Documents, Photos} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0o750); err != nil {
			return nil, fmt.Errorf("creating upload dir: %w", err)
		}
	}
	return &LocalStore{
		root: root,
		log:  log.With("component", "filestore", "backend", "local"),
		now:  time.Now,
	}, nil
}

// LocalStore keeps uploads on disk under <root>/<kind>/<name>.
type LocalStore struct {
	root string
	log  *slog.Logger
	now  func() time.Time
}

var _ Store = &LocalStore{}

func (l *LocalStore) Save(ctx context.Context, kind Kind, originalName, contentType string, size int64, r io.Reader) (params.FileInfo, error) {
	if !kind.Valid() {
		return params.FileInfo{}, fmt.Errorf("invalid file kind %q", kind)
	}
	dir := filepath.Join(l.root, string(kind))
	name := objectName(originalName, l.now())

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return params.FileInfo{}, fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		// No-op once the file was renamed.
		os.Remove(tmp.Name())
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return params.FileInfo{}, fmt.Errorf("writing upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return params.FileInfo{}, fmt.Errorf("closing upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return params.FileInfo{}, fmt.Errorf("storing upload: %w", err)
	}

	l.log.Debug("stored upload", "kind", kind, "name", name, "size", written)
	return fileInfo(kind, name, originalName, contentType, written), nil
}

// Remove deletes a stored file. Missing files are ignored.
func (l *LocalStore) Remove(ctx context.Context, filePath string) error {
	kind, name, err := ParsePath(filePath)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.root, string(kind), name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", filePath, err)
	}
	return nil
}

func (l *LocalStore) Serve(w http.ResponseWriter, r *http.Request, kind Kind, name string) {
	if !kind.Valid() || !ValidName(name) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, filepath.Join(l.root, string(kind), name))
}
