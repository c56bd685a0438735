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

package params

import "time"

type CategoryKind string

const (
	NoteCategory  CategoryKind = "note"
	TodoCategory  CategoryKind = "todo"
	PhotoCategory CategoryKind = "photo"
	GuideTag      CategoryKind = "guide_tag"
)

type Settings struct {
	SiteTitle        string `json:"site_title"`
	MaxLoginAttempts int    `json:"max_login_attempts"`
	BanDurationHours int    `json:"ban_duration_hours"`
}

// UpdateSettingsParams holds a partial settings update. Nil fields keep
// their current value.
type UpdateSettingsParams struct {
	SiteTitle        *string `json:"site_title,omitempty"`
	MaxLoginAttempts *int    `json:"max_login_attempts,omitempty"`
	BanDurationHours *int    `json:"ban_duration_hours,omitempty"`
}

type LoginAttempt struct {
	ID        uint      `json:"id"`
	IPAddress string    `json:"ip_address"`
	Timestamp time.Time `json:"attempt_time"`
	Success   bool      `json:"success"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
}

type BannedIP struct {
	ID          uint       `json:"id"`
	IPAddress   string     `json:"ip_address"`
	Reason      string     `json:"ban_reason"`
	BannedAt    time.Time  `json:"banned_at"`
	BannedUntil *time.Time `json:"banned_until"`
}

// Expired reports whether a temporary ban has run out at the given time.
func (b BannedIP) Expired(now time.Time) bool {
	if b.BannedUntil == nil {
		return false
	}
	return now.After(*b.BannedUntil)
}

type CreateBanParams struct {
	IPAddress string `json:"ip_address"`
	Reason    string `json:"ban_reason"`
	Permanent bool   `json:"permanent"`
}

type Category struct {
	ID        uint         `json:"id"`
	Kind      CategoryKind `json:"-"`
	Name      string       `json:"name"`
	Color     string       `json:"color,omitempty"`
	ParentID  *uint        `json:"parent_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Children  []Category   `json:"children,omitempty"`
}

// IsRoot reports whether the category sits at the top of its tree.
func (c Category) IsRoot() bool {
	return c.ParentID == nil
}

type CreateCategoryParams struct {
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	ParentID *uint  `json:"parent_id,omitempty"`
}

type Note struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CategoryID *uint     `json:"category_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type NoteParams struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	CategoryID *uint  `json:"category_id"`
}

type Todo struct {
	ID         uint      `json:"id"`
	Task       string    `json:"task"`
	Completed  bool      `json:"completed"`
	CategoryID *uint     `json:"category_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateTodoParams struct {
	Task       string `json:"task"`
	CategoryID *uint  `json:"category_id"`
}

type UpdateTodoParams struct {
	Task      *string `json:"task,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// FileInfo describes an uploaded file. Only the path is persisted, never
// the contents.
type FileInfo struct {
	FileName     string `json:"filename"`
	OriginalName string `json:"original_name"`
	FilePath     string `json:"file_path"`
	FileType     string `json:"file_type"`
	FileSize     int64  `json:"file_size"`
}

type Document struct {
	FileInfo
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type Photo struct {
	FileInfo
	ID          uint      `json:"id"`
	CategoryID  *uint     `json:"category_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type UpdatePhotoParams struct {
	Description string `json:"description"`
}

type GuideEntry struct {
	ID        uint       `json:"id"`
	Title     string     `json:"title"`
	Problem   string     `json:"problem"`
	Solution  string     `json:"solution"`
	Tags      []Category `json:"tags"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type GuideEntryParams struct {
	Title    string `json:"title"`
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
	TagIDs   []uint `json:"tag_ids"`
}

// GuideFilter narrows a machine guide listing. Zero values match everything.
type GuideFilter struct {
	TagID *uint
	Query string
}

// GuideImportRow is a single machine guide entry read from a bulk import.
// Tags are referenced by name and created when missing.
type GuideImportRow struct {
	Title    string
	Problem  string
	Solution string
	TagNames []string
}

type LoginParams struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

type ChangePasswordParams struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type CreatedResponse struct {
	ID       uint   `json:"id"`
	Success  bool   `json:"success"`
	FilePath string `json:"file_path,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type APIErrorResponse struct {
	Error       string     `json:"error"`
	BannedAt    *time.Time `json:"banned_at,omitempty"`
	BannedUntil *time.Time `json:"banned_until,omitempty"`
}
