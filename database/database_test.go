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

package database

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/config"
	"github.com/gabriel-samfira/techdesk/params"
)

func newTestDB(t *testing.T) *SQLDatabase {
	t.Helper()
	return openTestDB(t, filepath.Join(t.TempDir(), "techdesk.db"))
}

func openTestDB(t *testing.T, dbFile string) *SQLDatabase {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := NewSQLDatabase(context.Background(), config.Database{SQLiteFile: dbFile}, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func uintPtr(v uint) *uint {
	return &v
}

func TestSettingsBootstrap(t *testing.T) {
	ctx := context.Background()
	dbFile := filepath.Join(t.TempDir(), "techdesk.db")
	db := openTestDB(t, dbFile)

	settings, err := db.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, params.Settings{SiteTitle: "Tech Support", MaxLoginAttempts: 3, BanDurationHours: 24}, settings)

	_, err = db.UpdateSettings(ctx, params.Settings{SiteTitle: "Helpdesk", MaxLoginAttempts: 5, BanDurationHours: 1})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening must not reset existing settings.
	db = openTestDB(t, dbFile)
	settings, err = db.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Helpdesk", settings.SiteTitle)
	assert.Equal(t, 5, settings.MaxLoginAttempts)
}

func TestPasswordHash(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.GetPasswordHash(ctx)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, db.SetPasswordHash(ctx, "hash-1"))
	require.NoError(t, db.SetPasswordHash(ctx, "hash-2"))

	hash, err := db.GetPasswordHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", hash)
}

func TestBannedIPUniqueness(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	now := time.Now().UTC()
	until := now.Add(time.Hour)
	ban, err := db.CreateBannedIP(ctx, params.BannedIP{IPAddress: "10.0.0.1", Reason: "test", BannedAt: now, BannedUntil: &until})
	require.NoError(t, err)
	assert.NotZero(t, ban.ID)

	_, err = db.CreateBannedIP(ctx, params.BannedIP{IPAddress: "10.0.0.1", Reason: "again", BannedAt: now})
	require.ErrorIs(t, err, apperrors.ErrDuplicate)

	fetched, err := db.GetBannedIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "test", fetched.Reason)
	require.NotNil(t, fetched.BannedUntil)
	assert.WithinDuration(t, until, *fetched.BannedUntil, time.Millisecond)

	_, err = db.GetBannedIP(ctx, "10.0.0.2")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, db.DeleteBannedIPByAddress(ctx, "10.0.0.1"))
	_, err = db.GetBannedIP(ctx, "10.0.0.1")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLoginAttempts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, db.RecordLoginAttempt(ctx, "10.0.0.1", now.Add(-time.Duration(i)*time.Minute), false))
	}
	require.NoError(t, db.RecordLoginAttempt(ctx, "10.0.0.1", now, true))
	require.NoError(t, db.RecordLoginAttempt(ctx, "10.0.0.1", now.Add(-time.Hour), false))
	require.NoError(t, db.RecordLoginAttempt(ctx, "10.0.0.2", now, false))

	count, err := db.CountFailedLoginAttempts(ctx, "10.0.0.1", now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	attempts, err := db.ListLoginAttempts(ctx, 100)
	require.NoError(t, err)
	require.Len(t, attempts, 6)
	assert.Equal(t, now.Add(-time.Hour).Unix(), attempts[5].Timestamp.Unix())

	attempts, err = db.ListLoginAttempts(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, attempts, 2)

	pruned, err := db.PruneLoginAttempts(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestUnbanClearsFailedAttempts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, db.RecordLoginAttempt(ctx, "10.0.0.1", now, false))
	}
	require.NoError(t, db.RecordLoginAttempt(ctx, "10.0.0.2", now, false))
	ban, err := db.CreateBannedIP(ctx, params.BannedIP{IPAddress: "10.0.0.1", BannedAt: now})
	require.NoError(t, err)

	require.NoError(t, db.DeleteBannedIP(ctx, ban.ID))
	// Unknown IDs are a no-op.
	require.NoError(t, db.DeleteBannedIP(ctx, ban.ID))

	bans, err := db.ListBannedIPs(ctx)
	require.NoError(t, err)
	assert.Empty(t, bans)

	count, err := db.CountFailedLoginAttempts(ctx, "10.0.0.1", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = db.CountFailedLoginAttempts(ctx, "10.0.0.2", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Cleared attempts stay in the log.
	attempts, err := db.ListLoginAttempts(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, attempts, 4)

	require.NoError(t, db.RecordLoginAttempt(ctx, "10.0.0.2", now, false))
	_, err = db.CreateBannedIP(ctx, params.BannedIP{IPAddress: "10.0.0.2", BannedAt: now})
	require.NoError(t, err)
	require.NoError(t, db.UnbanIP(ctx, "10.0.0.2"))
	count, err = db.CountFailedLoginAttempts(ctx, "10.0.0.2", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCategoryDeleteDivergence(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	noteCat, err := db.CreateCategory(ctx, params.NoteCategory, params.CreateCategoryParams{Name: "Printers", Color: "#3B82F6"})
	require.NoError(t, err)
	note, err := db.CreateNote(ctx, params.NoteParams{Title: "Paper jam", CategoryID: uintPtr(noteCat.ID)})
	require.NoError(t, err)

	todoCat, err := db.CreateCategory(ctx, params.TodoCategory, params.CreateCategoryParams{Name: "Today"})
	require.NoError(t, err)
	_, err = db.CreateTodo(ctx, params.CreateTodoParams{Task: "Replace toner", CategoryID: uintPtr(todoCat.ID)})
	require.NoError(t, err)
	loose, err := db.CreateTodo(ctx, params.CreateTodoParams{Task: "Order cables"})
	require.NoError(t, err)

	_, err = db.DeleteCategory(ctx, params.NoteCategory, noteCat.ID, false)
	require.NoError(t, err)
	notes, err := db.ListNotes(ctx, nil)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, notes[0].ID)
	assert.Nil(t, notes[0].CategoryID)

	_, err = db.DeleteCategory(ctx, params.TodoCategory, todoCat.ID, true)
	require.NoError(t, err)
	todos, err := db.ListTodos(ctx, nil)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, loose.ID, todos[0].ID)

	// Deleting again is a no-op.
	files, err := db.DeleteCategory(ctx, params.TodoCategory, todoCat.ID, true)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestPhotoCategoryCascade(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	root, err := db.CreateCategory(ctx, params.PhotoCategory, params.CreateCategoryParams{Name: "Printers"})
	require.NoError(t, err)
	child, err := db.CreateCategory(ctx, params.PhotoCategory, params.CreateCategoryParams{Name: "Inkjet", ParentID: uintPtr(root.ID)})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, root.ID, *child.ParentID)

	inRoot, err := db.CreatePhoto(ctx, uintPtr(root.ID), "", params.FileInfo{FileName: "a.jpg", OriginalName: "a.jpg", FilePath: "/uploads/photos/a.jpg"})
	require.NoError(t, err)
	inChild, err := db.CreatePhoto(ctx, uintPtr(child.ID), "front", params.FileInfo{FileName: "b.jpg", OriginalName: "b.jpg", FilePath: "/uploads/photos/b.jpg"})
	require.NoError(t, err)
	kept, err := db.CreatePhoto(ctx, nil, "", params.FileInfo{FileName: "c.jpg", OriginalName: "c.jpg", FilePath: "/uploads/photos/c.jpg"})
	require.NoError(t, err)

	files, err := db.DeleteCategory(ctx, params.PhotoCategory, root.ID, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/uploads/photos/a.jpg", "/uploads/photos/b.jpg"}, files)

	cats, err := db.ListCategories(ctx, params.PhotoCategory)
	require.NoError(t, err)
	assert.Empty(t, cats)

	for _, id := range []uint{inRoot.ID, inChild.ID} {
		_, err = db.GetPhoto(ctx, id)
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	}
	_, err = db.GetPhoto(ctx, kept.ID)
	require.NoError(t, err)
}

func TestPhotoCategoryDepth(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	root, err := db.CreateCategory(ctx, params.PhotoCategory, params.CreateCategoryParams{Name: "Printers"})
	require.NoError(t, err)
	child, err := db.CreateCategory(ctx, params.PhotoCategory, params.CreateCategoryParams{Name: "Inkjet", ParentID: uintPtr(root.ID)})
	require.NoError(t, err)

	_, err = db.CreateCategory(ctx, params.PhotoCategory, params.CreateCategoryParams{Name: "Too deep", ParentID: uintPtr(child.ID)})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = db.CreateCategory(ctx, params.PhotoCategory, params.CreateCategoryParams{Name: "Orphan", ParentID: uintPtr(9999)})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = db.CreateNote(ctx, params.NoteParams{Title: "Orphan", CategoryID: uintPtr(9999)})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	count, err := db.CountCategories(ctx, params.PhotoCategory)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestNotesAndTodos(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	cat, err := db.CreateCategory(ctx, params.NoteCategory, params.CreateCategoryParams{Name: "Network"})
	require.NoError(t, err)
	note, err := db.CreateNote(ctx, params.NoteParams{Title: "VPN", Content: "<p>steps</p>"})
	require.NoError(t, err)

	require.NoError(t, db.UpdateNote(ctx, note.ID, params.NoteParams{Title: "VPN setup", Content: "<p>new</p>", CategoryID: uintPtr(cat.ID)}))
	require.NoError(t, db.UpdateNote(ctx, 9999, params.NoteParams{Title: "ghost"}))

	notes, err := db.ListNotes(ctx, uintPtr(cat.ID))
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "VPN setup", notes[0].Title)

	require.NoError(t, db.DeleteNote(ctx, note.ID))
	require.NoError(t, db.DeleteNote(ctx, note.ID))
	notes, err = db.ListNotes(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, notes)

	todo, err := db.CreateTodo(ctx, params.CreateTodoParams{Task: "Backup"})
	require.NoError(t, err)
	assert.False(t, todo.Completed)

	done := true
	require.NoError(t, db.UpdateTodo(ctx, todo.ID, params.UpdateTodoParams{Completed: &done}))
	todos, err := db.ListTodos(ctx, nil)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.True(t, todos[0].Completed)
	assert.Equal(t, "Backup", todos[0].Task)
}

func TestDocumentsAndPhotos(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	doc, err := db.CreateDocument(ctx, params.FileInfo{FileName: "x.pdf", OriginalName: "manual.pdf", FilePath: "/uploads/documents/x.pdf", FileType: "application/pdf", FileSize: 42})
	require.NoError(t, err)
	docs, err := db.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "manual.pdf", docs[0].OriginalName)

	path, err := db.DeleteDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/documents/x.pdf", path)
	path, err = db.DeleteDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, path)

	photo, err := db.CreatePhoto(ctx, nil, "", params.FileInfo{FileName: "p.png", OriginalName: "p.png", FilePath: "/uploads/photos/p.png"})
	require.NoError(t, err)
	require.NoError(t, db.UpdatePhoto(ctx, photo.ID, params.UpdatePhotoParams{Description: "rack"}))
	fetched, err := db.GetPhoto(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, "rack", fetched.Description)

	path, err = db.DeletePhoto(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/photos/p.png", path)
}

func TestGuideEntries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	wifi, err := db.CreateCategory(ctx, params.GuideTag, params.CreateCategoryParams{Name: "wifi", Color: "#10B981"})
	require.NoError(t, err)
	audio, err := db.CreateCategory(ctx, params.GuideTag, params.CreateCategoryParams{Name: "audio", Color: "#EF4444"})
	require.NoError(t, err)
	_, err = db.CreateCategory(ctx, params.GuideTag, params.CreateCategoryParams{Name: "wifi"})
	require.ErrorIs(t, err, apperrors.ErrDuplicate)

	tags, err := db.ListCategories(ctx, params.GuideTag)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "audio", tags[0].Name)

	entry, err := db.CreateGuideEntry(ctx, params.GuideEntryParams{
		Title:    "No signal",
		Problem:  "Laptop drops 100% of packets",
		Solution: "Reset the adapter",
		TagIDs:   []uint{wifi.ID, wifi.ID, audio.ID},
	})
	require.NoError(t, err)
	require.Len(t, entry.Tags, 2)
	assert.Equal(t, "audio", entry.Tags[0].Name)

	_, err = db.CreateGuideEntry(ctx, params.GuideEntryParams{Title: "Crackling", Problem: "Speakers", Solution: "Swap cable"})
	require.NoError(t, err)

	byTag, err := db.ListGuideEntries(ctx, params.GuideFilter{TagID: uintPtr(wifi.ID)})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, entry.ID, byTag[0].ID)

	byQuery, err := db.ListGuideEntries(ctx, params.GuideFilter{Query: "cable"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "Crackling", byQuery[0].Title)

	byPercent, err := db.ListGuideEntries(ctx, params.GuideFilter{Query: "100%"})
	require.NoError(t, err)
	assert.Len(t, byPercent, 1)

	require.NoError(t, db.UpdateGuideEntry(ctx, entry.ID, params.GuideEntryParams{Title: "No signal", Problem: "p", Solution: "s", TagIDs: []uint{audio.ID}}))
	updated, err := db.GetGuideEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, audio.ID, updated.Tags[0].ID)

	// Deleting a tag keeps the entries.
	_, err = db.DeleteCategory(ctx, params.GuideTag, audio.ID, false)
	require.NoError(t, err)
	updated, err = db.GetGuideEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)

	require.NoError(t, db.DeleteGuideEntry(ctx, entry.ID))
	_, err = db.GetGuideEntry(ctx, entry.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestImportGuideEntries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.CreateCategory(ctx, params.GuideTag, params.CreateCategoryParams{Name: "printer", Color: "#3B82F6"})
	require.NoError(t, err)

	colorFor := func(i int) string {
		return []string{"#000000", "#111111", "#222222"}[i%3]
	}
	rows := []params.GuideImportRow{
		{Title: "Jam", Problem: "Paper stuck", Solution: "Open tray", TagNames: []string{"printer", " hardware "}},
		{Title: "Slow", Problem: "Boot takes ages", Solution: "Disable startup apps", TagNames: []string{"hardware", ""}},
	}
	imported, err := db.ImportGuideEntries(ctx, rows, colorFor)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	tags, err := db.ListCategories(ctx, params.GuideTag)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "hardware", tags[0].Name)
	assert.Equal(t, "#111111", tags[0].Color)

	entries, err := db.ListGuideEntries(ctx, params.GuideFilter{TagID: uintPtr(tags[0].ID)})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
