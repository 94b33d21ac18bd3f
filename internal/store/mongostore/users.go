// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package mongostore

import (
	"context"
	"database/sql"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/olegiv/chapel-cms/internal/store"
)

type userDoc struct {
	ID                    string     `bson:"_id"`
	Name                  string     `bson:"name"`
	Email                 string     `bson:"email"`
	PasswordHash          string     `bson:"passwordHash"`
	Role                  string     `bson:"role"`
	IsActive              bool       `bson:"isActive"`
	RequirePasswordChange bool       `bson:"requirePasswordChange"`
	CanDeleteAdmins       bool       `bson:"canDeleteAdmins"`
	LastLoginAt           *time.Time `bson:"lastLoginAt,omitempty"`
	CreatedAt             time.Time  `bson:"createdAt"`
	UpdatedAt             time.Time  `bson:"updatedAt"`
}

func (d userDoc) toUser() store.User {
	u := store.User{
		ID:                    d.ID,
		Name:                  d.Name,
		Email:                 d.Email,
		PasswordHash:          d.PasswordHash,
		Role:                  d.Role,
		IsActive:              d.IsActive,
		RequirePasswordChange: d.RequirePasswordChange,
		CanDeleteAdmins:       d.CanDeleteAdmins,
		CreatedAt:             d.CreatedAt.UTC(),
		UpdatedAt:             d.UpdatedAt.UTC(),
	}
	if d.LastLoginAt != nil {
		u.LastLoginAt = sql.NullTime{Time: d.LastLoginAt.UTC(), Valid: true}
	}
	return u
}

// CreateUser inserts a user; store.ErrDuplicate when the email is taken.
func (s *Store) CreateUser(ctx context.Context, arg store.CreateUserParams) (store.User, error) {
	d := userDoc{
		ID:                    arg.ID,
		Name:                  arg.Name,
		Email:                 arg.Email,
		PasswordHash:          arg.PasswordHash,
		Role:                  arg.Role,
		IsActive:              true,
		RequirePasswordChange: arg.RequirePasswordChange,
		CreatedAt:             arg.CreatedAt,
		UpdatedAt:             arg.UpdatedAt,
	}
	if _, err := s.users.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.User{}, store.ErrDuplicate
		}
		return store.User{}, err
	}
	return d.toUser(), nil
}

func (s *Store) findUser(ctx context.Context, filter bson.D) (store.User, error) {
	var d userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&d); err != nil {
		return store.User{}, notFound(err)
	}
	return d.toUser(), nil
}

// GetUserByID returns a user or store.ErrNotFound.
func (s *Store) GetUserByID(ctx context.Context, id string) (store.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

// GetUserByEmail returns a user or store.ErrNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	return s.findUser(ctx, bson.D{{Key: "email", Value: email}})
}

// ListUsers returns every user ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]store.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "email", Value: 1}})
	cur, err := s.users.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := make([]store.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toUser())
	}
	return users, nil
}

// CountUsers returns the number of users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	return s.users.CountDocuments(ctx, bson.D{})
}

func (s *Store) updateOne(ctx context.Context, id string, set bson.D) error {
	res, err := s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateUserPassword stores a new hash and sets the forced-change flag.
func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string, requireChange bool, now time.Time) error {
	return s.updateOne(ctx, id, bson.D{
		{Key: "passwordHash", Value: passwordHash},
		{Key: "requirePasswordChange", Value: requireChange},
		{Key: "updatedAt", Value: now},
	})
}

// UpdateUserCanDeleteAdmins sets the delete-admins permission flag.
func (s *Store) UpdateUserCanDeleteAdmins(ctx context.Context, id string, allowed bool, now time.Time) error {
	return s.updateOne(ctx, id, bson.D{
		{Key: "canDeleteAdmins", Value: allowed},
		{Key: "updatedAt", Value: now},
	})
}

// UpdateUserLastLogin records a successful login.
func (s *Store) UpdateUserLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, id, bson.D{{Key: "lastLoginAt", Value: at}})
}

// DeleteUser removes a user; store.ErrNotFound when absent.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
