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
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/config"
	"github.com/gabriel-samfira/techdesk/params"
)

const (
	defaultSiteTitle        = "Tech Support"
	defaultMaxLoginAttempts = 3
	defaultBanDurationHours = 24

	errCategoryTooDeep = "category nesting too deep"
)

// The store is the only place where the two level photo category tree can be
// checked without races, so reject grandchildren at insert and update time.
var categoryDepthTriggers = []string{
	`CREATE TRIGGER IF NOT EXISTS photo_categories_depth_insert
	BEFORE INSERT ON photo_categories
	WHEN NEW.parent_id IS NOT NULL AND
		(SELECT parent_id FROM photo_categories WHERE id = NEW.parent_id) IS NOT NULL
	BEGIN
		SELECT RAISE(ABORT, '` + errCategoryTooDeep + `');
	END;`,
	`CREATE TRIGGER IF NOT EXISTS photo_categories_depth_update
	BEFORE UPDATE OF parent_id ON photo_categories
	WHEN NEW.parent_id IS NOT NULL AND (
		(SELECT parent_id FROM photo_categories WHERE id = NEW.parent_id) IS NOT NULL OR
		EXISTS (SELECT 1 FROM photo_categories WHERE parent_id = NEW.id))
	BEGIN
		SELECT RAISE(ABORT, '` + errCategoryTooDeep + `');
	END;`,
}

func newDBConn(dbCfg config.Database) (conn *gorm.DB, err error) {
	connURI, err := dbCfg.GormParams()
	if err != nil {
		return nil, errors.Wrap(err, "getting DB URI string")
	}

	gormConfig := &gorm.Config{
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
	if !dbCfg.Debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	}

	conn, err = gorm.Open(sqlite.Open(connURI), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to database")
	}

	if dbCfg.Debug {
		conn = conn.Debug()
	}
	return conn, nil
}

func NewSQLDatabase(ctx context.Context, cfg config.Database, log *slog.Logger) (*SQLDatabase, error) {
	conn, err := newDBConn(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating DB connection")
	}

	var geoIPConn *geoIP
	if cfg.GeoIPDBFile != "" {
		geoIPConn, err = newGeoIP(cfg.GeoIPDBFile)
		if err != nil {
			return nil, errors.Wrap(err, "creating geoip connection")
		}
	}
	db := &SQLDatabase{
		conn:  conn,
		ctx:   ctx,
		cfg:   cfg,
		geoIP: geoIPConn,
		log:   log.With("component", "database"),
	}

	if err := db.migrateDB(); err != nil {
		return nil, errors.Wrap(err, "migrating database")
	}

	if err := db.initSettings(); err != nil {
		return nil, errors.Wrap(err, "initializing settings")
	}
	return db, nil
}

type SQLDatabase struct {
	conn  *gorm.DB
	ctx   context.Context
	cfg   config.Database
	geoIP *geoIP
	log   *slog.Logger
}

func (s *SQLDatabase) migrateDB() error {
	if err := s.conn.AutoMigrate(
		&AuthRecord{},
		&Settings{},
		&LoginAttempt{},
		&BannedIP{},
		&NoteCategory{},
		&Note{},
		&TodoCategory{},
		&Todo{},
		&PhotoCategory{},
		&Photo{},
		&Document{},
		&GuideEntry{},
		&GuideTag{},
		&GuideTagRelation{},
	); err != nil {
		return errors.Wrap(err, "running auto migrate")
	}

	for _, trigger := range categoryDepthTriggers {
		if err := s.conn.Exec(trigger).Error; err != nil {
			return errors.Wrap(err, "creating category depth trigger")
		}
	}
	return nil
}

func (s *SQLDatabase) initSettings() error {
	settings := Settings{
		ID:               singletonID,
		SiteTitle:        defaultSiteTitle,
		MaxLoginAttempts: defaultMaxLoginAttempts,
		BanDurationHours: defaultBanDurationHours,
	}
	// FirstOrCreate leaves an existing row untouched.
	if err := s.conn.Where("id = ?", singletonID).FirstOrCreate(&settings).Error; err != nil {
		return errors.Wrap(err, "creating settings")
	}
	return nil
}

// Close releases the database handle and the geoip reader.
func (s *SQLDatabase) Close() error {
	if s.geoIP != nil {
		if err := s.geoIP.Close(); err != nil {
			s.log.Warn("failed to close geoip database", "error", err)
		}
	}
	sqlDB, err := s.conn.DB()
	if err != nil {
		return errors.Wrap(err, "fetching sql handle")
	}
	return sqlDB.Close()
}

func (s *SQLDatabase) withCtx(ctx context.Context) *gorm.DB {
	if ctx == nil {
		ctx = s.ctx
	}
	return s.conn.WithContext(ctx)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation matches both the raw sqlite error and the message of
// the translated gorm error.
func isForeignKeyViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

// translateError maps driver errors onto the apperrors classes and wraps
// everything else with the given message.
func translateError(err error, msg string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(apperrors.ErrNotFound, msg)
	case isUniqueViolation(err):
		return errors.Wrap(apperrors.ErrDuplicate, msg)
	case isForeignKeyViolation(err):
		return apperrors.NewBadRequestError("%s: referenced entity does not exist", msg)
	case strings.Contains(err.Error(), errCategoryTooDeep):
		return apperrors.NewBadRequestError("%s: %s", msg, errCategoryTooDeep)
	}
	return errors.Wrap(err, msg)
}

func settingsToParams(s Settings) params.Settings {
	return params.Settings{
		SiteTitle:        s.SiteTitle,
		MaxLoginAttempts: s.MaxLoginAttempts,
		BanDurationHours: s.BanDurationHours,
	}
}

func (s *SQLDatabase) GetSettings(ctx context.Context) (params.Settings, error) {
	var settings Settings
	if err := s.withCtx(ctx).Where("id = ?", singletonID).First(&settings).Error; err != nil {
		return params.Settings{}, translateError(err, "fetching settings")
	}
	return settingsToParams(settings), nil
}

func (s *SQLDatabase) UpdateSettings(ctx context.Context, settings params.Settings) (params.Settings, error) {
	row := Settings{
		ID:               singletonID,
		SiteTitle:        settings.SiteTitle,
		MaxLoginAttempts: settings.MaxLoginAttempts,
		BanDurationHours: settings.BanDurationHours,
	}
	if err := s.withCtx(ctx).Save(&row).Error; err != nil {
		return params.Settings{}, translateError(err, "saving settings")
	}
	return settingsToParams(row), nil
}

func (s *SQLDatabase) GetPasswordHash(ctx context.Context) (string, error) {
	var record AuthRecord
	if err := s.withCtx(ctx).Where("id = ?", singletonID).First(&record).Error; err != nil {
		return "", translateError(err, "fetching auth record")
	}
	return record.PasswordHash, nil
}

func (s *SQLDatabase) SetPasswordHash(ctx context.Context, hash string) error {
	record := AuthRecord{
		ID:           singletonID,
		PasswordHash: hash,
	}
	if err := s.withCtx(ctx).Save(&record).Error; err != nil {
		return translateError(err, "saving auth record")
	}
	return nil
}
