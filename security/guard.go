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

// Package security decides whether a client address may attempt a login and
// keeps the bookkeeping behind that decision: the attempt log, IP bans and
// the operator credentials.
package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/gabriel-samfira/techdesk/apperrors"
	"github.com/gabriel-samfira/techdesk/params"
)

const (
	// AttemptWindow is the sliding window in which failed logins are counted.
	AttemptWindow = 15 * time.Minute
	// AttemptRetention is how long login attempts are kept in the log.
	AttemptRetention = 30 * 24 * time.Hour
	// MinPasswordLength is the minimum number of characters of a new password.
	MinPasswordLength = 4
	// ManualBanReason is used for operator bans created without a reason.
	ManualBanReason = "Manual ban"

	defaultMaxLoginAttempts = 3
	defaultBanDuration      = 24 * time.Hour
)

// Store is the persistence the guard relies on.
type Store interface {
	GetSettings(ctx context.Context) (params.Settings, error)

	GetPasswordHash(ctx context.Context) (string, error)
	SetPasswordHash(ctx context.Context, hash string) error

	GetBannedIP(ctx context.Context, ip string) (params.BannedIP, error)
	CreateBannedIP(ctx context.Context, ban params.BannedIP) (params.BannedIP, error)
	DeleteBannedIPByAddress(ctx context.Context, ip string) error

	RecordLoginAttempt(ctx context.Context, ip string, at time.Time, success bool) error
	CountFailedLoginAttempts(ctx context.Context, ip string, since time.Time) (int64, error)
	PruneLoginAttempts(ctx context.Context, before time.Time) (int64, error)
}

func NewGuard(store Store, bcryptCost int, log *slog.Logger) *Guard {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Guard{
		store: store,
		cost:  bcryptCost,
		log:   log.With("component", "security"),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type Guard struct {
	store Store
	cost  int
	log   *slog.Logger
	now   func() time.Time
}

type limits struct {
	maxAttempts int
	banDuration time.Duration
}

func (g *Guard) limits(ctx context.Context) (limits, error) {
	ret := limits{
		maxAttempts: defaultMaxLoginAttempts,
		banDuration: defaultBanDuration,
	}
	settings, err := g.store.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ret, nil
		}
		return ret, fmt.Errorf("fetching settings: %w", err)
	}
	if settings.MaxLoginAttempts > 0 {
		ret.maxAttempts = settings.MaxLoginAttempts
	}
	if settings.BanDurationHours > 0 {
		ret.banDuration = time.Duration(settings.BanDurationHours) * time.Hour
	}
	return ret, nil
}

func bannedError(ban params.BannedIP) error {
	return &apperrors.BannedError{
		Message:     "IP address is banned",
		BannedAt:    ban.BannedAt,
		BannedUntil: ban.BannedUntil,
	}
}

// CheckBanned returns nil if ip may proceed, or an *apperrors.BannedError.
// An expired ban is removed on the spot and the address is allowed.
func (g *Guard) CheckBanned(ctx context.Context, ip string) error {
	ban, err := g.store.GetBannedIP(ctx, ip)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("fetching ban: %w", err)
	}

	if ban.Expired(g.now()) {
		if err := g.store.DeleteBannedIPByAddress(ctx, ip); err != nil {
			return fmt.Errorf("removing expired ban: %w", err)
		}
		g.log.Info("ban expired", "ip", ip, "banned_until", ban.BannedUntil)
		return nil
	}
	return bannedError(ban)
}

// TrackAttempt bans ip once it reached the failed login threshold inside the
// attempt window. It returns nil when the address may still try.
func (g *Guard) TrackAttempt(ctx context.Context, ip string) error {
	lim, err := g.limits(ctx)
	if err != nil {
		return err
	}

	now := g.now()
	failed, err := g.store.CountFailedLoginAttempts(ctx, ip, now.Add(-AttemptWindow))
	if err != nil {
		return fmt.Errorf("counting login attempts: %w", err)
	}
	if failed < int64(lim.maxAttempts) {
		return nil
	}

	until := now.Add(lim.banDuration)
	ban := params.BannedIP{
		IPAddress:   ip,
		Reason:      fmt.Sprintf("%d failed login attempts", failed),
		BannedAt:    now,
		BannedUntil: &until,
	}
	created, err := g.store.CreateBannedIP(ctx, ban)
	if err != nil {
		if !errors.Is(err, apperrors.ErrDuplicate) {
			return fmt.Errorf("creating ban: %w", err)
		}
		// Someone else banned the address first. Report their ban.
		if existing, getErr := g.store.GetBannedIP(ctx, ip); getErr == nil {
			created = existing
		} else {
			created = ban
		}
	} else {
		g.log.Warn("ip banned", "ip", ip, "failed_attempts", failed, "banned_until", until)
	}
	return bannedError(created)
}

// RecordAttempt appends to the attempt log and drops entries older than
// AttemptRetention.
func (g *Guard) RecordAttempt(ctx context.Context, ip string, success bool) error {
	now := g.now()
	if err := g.store.RecordLoginAttempt(ctx, ip, now, success); err != nil {
		return fmt.Errorf("recording login attempt: %w", err)
	}
	if _, err := g.store.PruneLoginAttempts(ctx, now.Add(-AttemptRetention)); err != nil {
		return fmt.Errorf("pruning login attempts: %w", err)
	}
	return nil
}

// VerifyCredentials compares password with the stored hash. A missing hash is
// a system error, never a failed login.
func (g *Guard) VerifyCredentials(ctx context.Context, password string) (bool, error) {
	hash, err := g.store.GetPasswordHash(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, fmt.Errorf("no operator credentials stored")
		}
		return false, fmt.Errorf("fetching password hash: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("comparing password: %w", err)
	}
	return true, nil
}

// Login runs the full login sequence for a client address. It returns nil on
// success, apperrors.ErrUnauthorized for a bad password and an
// *apperrors.BannedError when the address is banned. The failure that reaches
// the threshold bans the address right away.
func (g *Guard) Login(ctx context.Context, ip, password string) error {
	if err := g.CheckBanned(ctx, ip); err != nil {
		return err
	}
	if err := g.TrackAttempt(ctx, ip); err != nil {
		return err
	}

	ok, err := g.VerifyCredentials(ctx, password)
	if err != nil {
		return err
	}
	if err := g.RecordAttempt(ctx, ip, ok); err != nil {
		return err
	}
	if ok {
		g.log.Info("login succeeded", "ip", ip)
		return nil
	}

	g.log.Warn("failed login attempt", "ip", ip)
	if err := g.TrackAttempt(ctx, ip); err != nil && !errors.Is(err, apperrors.ErrBanned) {
		return err
	}
	return apperrors.ErrUnauthorized
}

func (g *Guard) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hashed), nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.NewBadRequestError("password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}

// ChangePassword replaces the operator password after checking the old one.
func (g *Guard) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	ok, err := g.VerifyCredentials(ctx, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrUnauthorized
	}
	return g.ResetPassword(ctx, newPassword)
}

// ResetPassword sets the operator password without checking the old one. It
// backs the offline passwd command.
func (g *Guard) ResetPassword(ctx context.Context, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hashed, err := g.hash(newPassword)
	if err != nil {
		return err
	}
	if err := g.store.SetPasswordHash(ctx, hashed); err != nil {
		return fmt.Errorf("storing password hash: %w", err)
	}
	return nil
}

// Bootstrap stores the initial password when no credentials exist yet.
func (g *Guard) Bootstrap(ctx context.Context, initialPassword string) error {
	_, err := g.store.GetPasswordHash(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("fetching password hash: %w", err)
	}

	hashed, err := g.hash(initialPassword)
	if err != nil {
		return err
	}
	if err := g.store.SetPasswordHash(ctx, hashed); err != nil {
		return fmt.Errorf("storing initial password hash: %w", err)
	}
	g.log.Warn("operator password initialized to the configured default, change it after the first login")
	return nil
}

// BanIP creates an operator ban. Non permanent bans last ban_duration_hours.
func (g *Guard) BanIP(ctx context.Context, param params.CreateBanParams) (params.BannedIP, error) {
	ip := strings.TrimSpace(param.IPAddress)
	if ip == "" {
		return params.BannedIP{}, apperrors.NewBadRequestError("ip_address is required")
	}
	if net.ParseIP(ip) == nil {
		return params.BannedIP{}, apperrors.NewBadRequestError("invalid ip_address %q", ip)
	}
	reason := strings.TrimSpace(param.Reason)
	if reason == "" {
		reason = ManualBanReason
	}

	now := g.now()
	ban := params.BannedIP{
		IPAddress: ip,
		Reason:    reason,
		BannedAt:  now,
	}
	if !param.Permanent {
		lim, err := g.limits(ctx)
		if err != nil {
			return params.BannedIP{}, err
		}
		until := now.Add(lim.banDuration)
		ban.BannedUntil = &until
	}

	created, err := g.store.CreateBannedIP(ctx, ban)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return params.BannedIP{}, apperrors.NewBadRequestError("IP already banned")
		}
		return params.BannedIP{}, fmt.Errorf("creating ban: %w", err)
	}
	g.log.Warn("ip banned by operator", "ip", ip, "permanent", param.Permanent)
	return created, nil
}
