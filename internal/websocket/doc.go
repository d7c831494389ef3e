// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

// Package websocket implements the real-time delivery layer: a
// conversation-keyed hub that fans persisted messages out to the
// sessions currently joined to each conversation, and the per-session
// client pumps that bridge gorilla/websocket connections to the hub
// and the delivery coordinator.
//
// Live delivery is best-effort by design. Subscriptions exist only in
// hub memory, a slow session is dropped rather than allowed to stall
// fan-out, and any missed event is recovered by the client's next HTTP
// resync, since every message is durable before it is relayed.
package websocket
