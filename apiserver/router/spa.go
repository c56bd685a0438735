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
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// spaHandler serves the compiled web frontend. Paths that do not map to a
// file get index.html so client side routes survive a reload.
type spaHandler struct {
	root string
}

func newSPAHandler(root string) spaHandler {
	return spaHandler{root: root}
}

func (s spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// path.Clean on a rooted path cannot climb above the root.
	cleaned := path.Clean("/" + r.URL.Path)
	full := filepath.Join(s.root, filepath.FromSlash(cleaned))

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		http.ServeFile(w, r, filepath.Join(s.root, "index.html"))
		return
	}
	http.ServeFile(w, r, full)
}
