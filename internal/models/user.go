// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package models

import "strings"

// User is the minimal identity this service needs: enough to resolve a
// sender's display name for notification titles. Account management
// lives in the main UniHelp backend; users are mirrored here read-only.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// DisplayName returns the user's human-readable name, falling back to
// the id when no name fields are set.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.ID
	}
	return name
}
