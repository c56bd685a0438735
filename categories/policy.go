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

package categories

import (
	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/params"
)

// Policy describes how a category kind behaves.
type Policy struct {
	// Hierarchical kinds allow one level of children under a root.
	Hierarchical bool
	// Colored kinds carry a display color.
	Colored bool
	// CascadeItems deletes the items filed under a deleted category.
	// Otherwise they are detached and kept.
	CascadeItems bool
	// RemovesFiles is set for kinds whose items own uploaded files.
	RemovesFiles bool
}

var policies = map[params.CategoryKind]Policy{
	// Notes outlive their category.
	params.NoteCategory: {Colored: true},
	params.TodoCategory: {Colored: true, CascadeItems: true},
	params.PhotoCategory: {
		Hierarchical: true,
		CascadeItems: true,
		RemovesFiles: true,
	},
	// Deleting a tag only drops its relations. Entries stay.
	params.GuideTag: {Colored: true},
}

// PolicyFor returns the policy of a kind.
func PolicyFor(kind params.CategoryKind) (Policy, error) {
	policy, ok := policies[kind]
	if !ok {
		return Policy{}, apperrors.NewBadRequestError("unknown category kind %q", kind)
	}
	return policy, nil
}

// Palette holds the colors assigned to new categories that do not pick one.
var Palette = []string{
	"#3B82F6",
	"#10B981",
	"#F59E0B",
	"#EF4444",
	"#8B5CF6",
	"#EC4899",
	"#14B8A6",
	"#F97316",
}

// PaletteColor returns the i-th palette color, wrapping around.
func PaletteColor(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}
