// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

// Package models defines the data structures shared across the
// messaging service: chat messages and conversations, notification
// records with gateway tickets, device bindings, and the standard API
// response envelope.
package models
