// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package mongostore implements the content and user repositories on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/olegiv/chapel-cms/internal/store"
)

// Collection names.
const (
	ContentCollection = "content"
	UsersCollection   = "users"
)

const connectTimeout = 10 * time.Second

// Store is a MongoDB-backed store.ContentRepository and store.UserRepository.
type Store struct {
	client   *mongo.Client
	contents *mongo.Collection
	users    *mongo.Collection
}

var (
	_ store.ContentRepository = (*Store)(nil)
	_ store.UserRepository    = (*Store)(nil)
)

// Open connects to uri, verifies the connection and ensures indexes.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		contents: db.Collection(ContentCollection),
		users:    db.Collection(UsersCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Ping checks the connection to the primary.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.contents.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "page", Value: 1}, {Key: "section", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("page_section_unique"),
	})
	if err != nil {
		return fmt.Errorf("creating content index: %w", err)
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("creating users index: %w", err)
	}
	return nil
}

// notFound maps mongo.ErrNoDocuments to store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}
