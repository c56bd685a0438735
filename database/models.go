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
	"time"
)

// singletonID is the fixed primary key of single-row tables.
const singletonID = 1

// Base is embedded in every entity table. There is no soft delete: rows
// must really go away for the ON DELETE rules to fire.
type Base struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`
}

type AuthRecord struct {
	ID           uint   `gorm:"primarykey"`
	PasswordHash string `gorm:"not null"`
	UpdatedAt    time.Time
}

type Settings struct {
	ID               uint `gorm:"primarykey"`
	SiteTitle        string
	MaxLoginAttempts int
	BanDurationHours int
}

type LoginAttempt struct {
	ID          uint      `gorm:"primarykey"`
	IPAddress   string    `gorm:"index:attempt_ip_time,priority:1;not null"`
	AttemptTime time.Time `gorm:"index:attempt_ip_time,priority:2;index:attempt_time"`
	Success     bool
	// Cleared is set on failed attempts that were forgiven by an unban, so
	// they no longer count towards the threshold but stay in the log.
	Cleared bool
	Country string
	City    string
}

type BannedIP struct {
	ID          uint   `gorm:"primarykey"`
	IPAddress   string `gorm:"uniqueIndex:banned_ip_address;not null"`
	Reason      string
	BannedAt    time.Time  `gorm:"index"`
	BannedUntil *time.Time `gorm:"index"`
}

func (BannedIP) TableName() string { return "banned_ips" }

type NoteCategory struct {
	Base

	Name  string `gorm:"not null"`
	Color string
}

type Note struct {
	Base

	UpdatedAt  time.Time `gorm:"index"`
	Title      string    `gorm:"not null"`
	Content    string
	CategoryID *uint         `gorm:"index"`
	Category   *NoteCategory `gorm:"constraint:OnDelete:SET NULL"`
}

type TodoCategory struct {
	Base

	Name  string `gorm:"not null"`
	Color string
}

type Todo struct {
	Base

	Task       string `gorm:"not null"`
	Completed  bool
	CategoryID *uint         `gorm:"index"`
	Category   *TodoCategory `gorm:"constraint:OnDelete:CASCADE"`
}

type PhotoCategory struct {
	Base

	Name     string         `gorm:"not null"`
	ParentID *uint          `gorm:"index"`
	Parent   *PhotoCategory `gorm:"constraint:OnDelete:CASCADE"`
}

type Photo struct {
	Base

	FileName     string `gorm:"not null"`
	OriginalName string `gorm:"not null"`
	FilePath     string `gorm:"not null"`
	FileType     string
	FileSize     int64
	Description  string
	CategoryID   *uint          `gorm:"index"`
	Category     *PhotoCategory `gorm:"constraint:OnDelete:CASCADE"`
}

type Document struct {
	Base

	FileName     string `gorm:"not null"`
	OriginalName string `gorm:"not null"`
	FilePath     string `gorm:"not null"`
	FileType     string
	FileSize     int64
}

type GuideEntry struct {
	Base

	UpdatedAt time.Time `gorm:"index"`
	Title     string    `gorm:"not null"`
	Problem   string    `gorm:"not null"`
	Solution  string    `gorm:"not null"`
}

type GuideTag struct {
	Base

	Name  string `gorm:"uniqueIndex:guide_tag_name;not null"`
	Color string
}

// GuideTagRelation is the join table between guide entries and tags.
type GuideTagRelation struct {
	GuideEntryID uint       `gorm:"primaryKey;autoIncrement:false"`
	GuideTagID   uint       `gorm:"primaryKey;autoIncrement:false;index"`
	GuideEntry   GuideEntry `gorm:"constraint:OnDelete:CASCADE"`
	GuideTag     GuideTag   `gorm:"constraint:OnDelete:CASCADE"`
}
