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
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/gabriel-samfira/techdesk/params"
)

func banToParams(b BannedIP) params.BannedIP {
	return params.BannedIP{
		ID:          b.ID,
		IPAddress:   b.IPAddress,
		Reason:      b.Reason,
		BannedAt:    b.BannedAt,
		BannedUntil: b.BannedUntil,
	}
}

func attemptToParams(a LoginAttempt) params.LoginAttempt {
	return params.LoginAttempt{
		ID:        a.ID,
		IPAddress: a.IPAddress,
		Timestamp: a.AttemptTime,
		Success:   a.Success,
		Country:   a.Country,
		City:      a.City,
	}
}

func (s *SQLDatabase) RecordLoginAttempt(ctx context.Context, ip string, at time.Time, success bool) error {
	attempt := LoginAttempt{
		IPAddress:   ip,
		AttemptTime: at.UTC(),
		Success:     success,
	}
	if s.geoIP != nil {
		country, city, err := s.geoIP.Locate(ip)
		if err != nil {
			s.log.Debug("failed to locate client address", "ip", ip, "error", err)
		}
		attempt.Country = country
		attempt.City = city
	}
	if err := s.withCtx(ctx).Create(&attempt).Error; err != nil {
		return translateError(err, "recording login attempt")
	}
	return nil
}

// CountFailedLoginAttempts counts failures from ip at or after since. Attempts
// forgiven by an unban are not counted.
func (s *SQLDatabase) CountFailedLoginAttempts(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	q := s.withCtx(ctx).Model(&LoginAttempt{}).
		Where("ip_address = ? and success = ? and cleared = ? and attempt_time >= ?", ip, false, false, since.UTC())
	if err := q.Count(&count).Error; err != nil {
		return 0, translateError(err, "counting login attempts")
	}
	return count, nil
}

func (s *SQLDatabase) PruneLoginAttempts(ctx context.Context, before time.Time) (int64, error) {
	q := s.withCtx(ctx).Where("attempt_time < ?", before.UTC()).Delete(&LoginAttempt{})
	if q.Error != nil {
		return 0, translateError(q.Error, "pruning login attempts")
	}
	return q.RowsAffected, nil
}

// ListLoginAttempts returns the most recent attempts, newest first.
func (s *SQLDatabase) ListLoginAttempts(ctx context.Context, limit int) ([]params.LoginAttempt, error) {
	var attempts []LoginAttempt
	q := s.withCtx(ctx).Order("attempt_time desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&attempts).Error; err != nil {
		return nil, translateError(err, "listing login attempts")
	}

	ret := make([]params.LoginAttempt, len(attempts))
	for idx, val := range attempts {
		ret[idx] = attemptToParams(val)
	}
	return ret, nil
}

func (s *SQLDatabase) GetBannedIP(ctx context.Context, ip string) (params.BannedIP, error) {
	var ban BannedIP
	if err := s.withCtx(ctx).Where("ip_address = ?", ip).First(&ban).Error; err != nil {
		return params.BannedIP{}, translateError(err, "fetching ban")
	}
	return banToParams(ban), nil
}

func (s *SQLDatabase) ListBannedIPs(ctx context.Context) ([]params.BannedIP, error) {
	var bans []BannedIP
	if err := s.withCtx(ctx).Order("banned_at desc, id desc").Find(&bans).Error; err != nil {
		return nil, translateError(err, "listing bans")
	}

	ret := make([]params.BannedIP, len(bans))
	for idx, val := range bans {
		ret[idx] = banToParams(val)
	}
	return ret, nil
}

// CreateBannedIP inserts a ban. A second ban for the same address fails with
// apperrors.ErrDuplicate.
func (s *SQLDatabase) CreateBannedIP(ctx context.Context, ban params.BannedIP) (params.BannedIP, error) {
	row := BannedIP{
		IPAddress:   ban.IPAddress,
		Reason:      ban.Reason,
		BannedAt:    ban.BannedAt.UTC(),
		BannedUntil: ban.BannedUntil,
	}
	if row.BannedUntil != nil {
		until := row.BannedUntil.UTC()
		row.BannedUntil = &until
	}
	if err := s.withCtx(ctx).Create(&row).Error; err != nil {
		return params.BannedIP{}, translateError(err, "creating ban")
	}
	return banToParams(row), nil
}

// DeleteBannedIPByAddress drops the ban row for ip, if any. Recorded attempts
// are left alone.
func (s *SQLDatabase) DeleteBannedIPByAddress(ctx context.Context, ip string) error {
	if err := s.withCtx(ctx).Where("ip_address = ?", ip).Delete(&BannedIP{}).Error; err != nil {
		return translateError(err, "deleting ban")
	}
	return nil
}

func clearFailedAttempts(tx *gorm.DB, ip string) error {
	q := tx.Model(&LoginAttempt{}).
		Where("ip_address = ? and success = ? and cleared = ?", ip, false, false).
		Update("cleared", true)
	return q.Error
}

// DeleteBannedIP lifts a ban by ID and forgives the failed attempts of the
// banned address. Unknown IDs are a no-op.
func (s *SQLDatabase) DeleteBannedIP(ctx context.Context, banID uint) error {
	err := s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		var ban BannedIP
		q := tx.Where("id = ?", banID).First(&ban)
		if q.Error != nil {
			if errors.Is(q.Error, gorm.ErrRecordNotFound) {
				return nil
			}
			return errors.Wrap(q.Error, "fetching ban")
		}
		if err := tx.Delete(&ban).Error; err != nil {
			return errors.Wrap(err, "deleting ban")
		}
		if err := clearFailedAttempts(tx, ban.IPAddress); err != nil {
			return errors.Wrap(err, "clearing login attempts")
		}
		return nil
	})
	if err != nil {
		return translateError(err, "removing ban")
	}
	return nil
}

// UnbanIP lifts the ban on ip and forgives its failed attempts.
func (s *SQLDatabase) UnbanIP(ctx context.Context, ip string) error {
	err := s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ip_address = ?", ip).Delete(&BannedIP{}).Error; err != nil {
			return errors.Wrap(err, "deleting ban")
		}
		if err := clearFailedAttempts(tx, ip); err != nil {
			return errors.Wrap(err, "clearing login attempts")
		}
		return nil
	})
	if err != nil {
		return translateError(err, "removing ban")
	}
	return nil
}
