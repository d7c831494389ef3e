// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/omarsaab96/unihelp-sub002/internal/logging"
	"github.com/omarsaab96/unihelp-sub002/internal/models"
)

// deviceKeyPrefix namespaces device records as
// "device:<user_id>:<token>" so a user's tokens share a key prefix and
// can be listed with a prefix scan.
const deviceKeyPrefix = "device:"

// BadgerTokenStore implements TokenStore on BadgerDB, giving the token
// registry durability across restarts without requiring the relational
// database.
type BadgerTokenStore struct {
	db *badger.DB
}

// NewBadgerTokenStore opens (or creates) the token registry at path.
func NewBadgerTokenStore(path string) (*BadgerTokenStore, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	logging.Info().Str("path", path).Msg("badger token store opened")
	return &BadgerTokenStore{db: db}, nil
}

func deviceKey(userID, token string) []byte {
	return []byte(deviceKeyPrefix + userID + ":" + token)
}

func (s *BadgerTokenStore) Register(_ context.Context, device *models.Device) error {
	data, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("marshal device: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(deviceKey(device.UserID, device.PushToken), data)
	})
}

func (s *BadgerTokenStore) TokensForUser(_ context.Context, userID string) ([]string, error) {
	var tokens []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(deviceKeyPrefix + userID + ":")
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var device models.Device
				if err := json.Unmarshal(val, &device); err != nil {
					return fmt.Errorf("unmarshal device: %w", err)
				}
				tokens = append(tokens, device.PushToken)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *BadgerTokenStore) Remove(_ context.Context, userID, token string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(deviceKey(userID, token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (s *BadgerTokenStore) Close() error {
	return s.db.Close()
}
