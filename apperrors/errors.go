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

// Package apperrors holds the error classes shared by the store, the
// security layer and the API. Callers match them with errors.Is / errors.As.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest marks caller-correctable input errors.
	ErrBadRequest = errors.New("invalid request")
	// ErrUnauthorized is returned for bad credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate entity")
	// ErrBanned is returned when the client address is banned.
	ErrBanned = errors.New("ip address is banned")
)

// BadRequestError carries a human readable reason for a rejected request.
type BadRequestError struct {
	Reason string
}

func (b *BadRequestError) Error() string {
	return b.Reason
}

func (b *BadRequestError) Is(target error) bool {
	return target == ErrBadRequest
}

func NewBadRequestError(msg string, a ...interface{}) error {
	return &BadRequestError{
		Reason: fmt.Sprintf(msg, a...),
	}
}

// BannedError is returned when a request is rejected because the client
// address is (or just got) banned. BannedUntil is nil for permanent bans.
type BannedError struct {
	Message     string
	BannedAt    time.Time
	BannedUntil *time.Time
}

func (b *BannedError) Error() string {
	if b.Message != "" {
		return b.Message
	}
	return ErrBanned.Error()
}

func (b *BannedError) Is(target error) bool {
	return target == ErrBanned
}

// Permanent reports whether the ban never expires.
func (b *BannedError) Permanent() bool {
	return b.BannedUntil == nil
}
