// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"

	"github.com/olegiv/chapel-cms/internal/auth"
	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/ratelimit"
	"github.com/olegiv/chapel-cms/internal/store"
)

// CountryLookup resolves an IP address to a country code.
type CountryLookup interface {
	LookupCountry(ip string) string
}

// Client describes where a login attempt came from.
type Client struct {
	IP        string
	UserAgent string
}

// Profile is the public view of a user.
type Profile struct {
	ID                    string            `json:"id"`
	Name                  string            `json:"name"`
	Email                 string            `json:"email"`
	Role                  string            `json:"role"`
	IsActive              bool              `json:"isActive"`
	RequirePasswordChange bool              `json:"requirePasswordChange"`
	Permissions           model.Permissions `json:"permissions"`
	LastLoginAt           *time.Time        `json:"lastLoginAt,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
}

// LoginResult is returned by a successful token login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Profile   `json:"user"`
}

// UserService implements authentication and account management.
type UserService struct {
	users           store.UserRepository
	limiter         ratelimit.Limiter
	tokens          *auth.TokenIssuer
	events          *EventService
	geo             CountryLookup
	superAdminEmail string
	logger          *slog.Logger
	now             func() time.Time
}

// UserServiceConfig holds the dependencies of a UserService.
type UserServiceConfig struct {
	Users           store.UserRepository
	Limiter         ratelimit.Limiter
	Tokens          *auth.TokenIssuer
	Events          *EventService // optional
	GeoIP           CountryLookup // optional
	SuperAdminEmail string
	Logger          *slog.Logger
}

// NewUserService creates a user service.
func NewUserService(cfg UserServiceConfig) *UserService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:           cfg.Users,
		limiter:         cfg.Limiter,
		tokens:          cfg.Tokens,
		events:          cfg.Events,
		geo:             cfg.GeoIP,
		superAdminEmail: cfg.SuperAdminEmail,
		logger:          logger,
		now:             time.Now,
	}
}

// Permissions returns the effective permissions of u.
func (s *UserService) Permissions(u store.User) model.Permissions {
	return model.EffectivePermissions(u.Role, u.Email, u.CanDeleteAdmins, s.superAdminEmail)
}

// Profile converts a stored user to its public view.
func (s *UserService) Profile(u store.User) Profile {
	p := Profile{
		ID:                    u.ID,
		Name:                  u.Name,
		Email:                 u.Email,
		Role:                  u.Role,
		IsActive:              u.IsActive,
		RequirePasswordChange: u.RequirePasswordChange,
		Permissions:           s.Permissions(u),
		CreatedAt:             u.CreatedAt,
	}
	if u.LastLoginAt.Valid {
		t := u.LastLoginAt.Time
		p.LastLoginAt = &t
	}
	return p
}

// Authenticate verifies credentials for a client. Every attempt counts
// against the client's throttle window; a success resets it.
func (s *UserService) Authenticate(ctx context.Context, email, password string, client Client) (store.User, error) {
	key := client.IP
	decision, err := s.limiter.Record(ctx, key)
	if err != nil {
		s.logger.Warn("login limiter unavailable", "error", err)
	} else if !decision.Allowed {
		s.auditLogin(ctx, model.EventLevelWarning, "Login blocked by rate limit", "", email, client)
		return store.User{}, &RateLimitError{RetryAfter: decision.RetryAfter}
	}

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return store.User{}, fmt.Errorf("loading user: %w", err)
		}
		s.auditLogin(ctx, model.EventLevelWarning, "Login failed: unknown email", "", email, client)
		return store.User{}, ErrInvalidCredentials
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil || !ok || !user.IsActive {
		s.auditLogin(ctx, model.EventLevelWarning, "Login failed: invalid credentials", user.ID, email, client)
		return store.User{}, ErrInvalidCredentials
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logger.Warn("failed to reset login limiter", "error", err)
	}

	now := s.now().UTC()
	if auth.NeedsRehash(user.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := s.users.UpdateUserPassword(ctx, user.ID, hash, user.RequirePasswordChange, now); err != nil {
				s.logger.Warn("failed to upgrade password hash", "user_id", user.ID, "error", err)
			}
		}
	}
	if err := s.users.UpdateUserLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt.Time, user.LastLoginAt.Valid = now, true

	s.auditLogin(ctx, model.EventLevelInfo, "Login succeeded", user.ID, email, client)
	return user, nil
}

// Login authenticates and issues a bearer token.
func (s *UserService) Login(ctx context.Context, email, password string, client Client) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, email, password, client)
	if err != nil {
		return nil, err
	}
	token, expires, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expires, User: s.Profile(user)}, nil
}

// UserFromToken resolves a bearer token to an active user.
func (s *UserService) UserFromToken(ctx context.Context, token string) (store.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return s.ActiveUser(ctx, claims.Subject)
}

// ActiveUser loads a user by id and rejects deactivated accounts.
func (s *UserService) ActiveUser(ctx context.Context, id string) (store.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, ErrInvalidCredentials
		}
		return store.User{}, err
	}
	if !user.IsActive {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the password of user after verifying the current one,
// and clears the forced-change flag.
func (s *UserService) ChangePassword(ctx context.Context, user store.User, current, next string) error {
	ok, err := auth.CheckPassword(current, user.PasswordHash)
	if err != nil || !ok {
		return invalidField("currentPassword", "Current password is incorrect")
	}
	if len(next) < auth.MinPasswordLength {
		return invalidField("newPassword", fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
	}
	if next == current {
		return invalidField("newPassword", "New password must differ from the current password")
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdateUserPassword(ctx, user.ID, hash, false, s.now().UTC()); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	s.auditUser(ctx, "Password changed", user.ID, user.ID, "")
	return nil
}

// Register creates an account with a random temporary password that must be
// changed at first login. The password is returned once.
func (s *UserService) Register(ctx context.Context, actor store.User, name, email, role, ip string) (Profile, string, error) {
	if !s.Permissions(actor).CanManageUsers {
		return Profile{}, "", forbidden("Only admins can register users")
	}

	password, err := auth.GenerateTemporaryPassword()
	if err != nil {
		return Profile{}, "", err
	}
	user, err := s.create(ctx, name, email, role, password, true)
	if err != nil {
		return Profile{}, "", err
	}

	s.auditUser(ctx, "User registered", actor.ID, user.ID, ip)
	return s.Profile(user), password, nil
}

// CreateUser creates an account with a chosen password.
func (s *UserService) CreateUser(ctx context.Context, name, email, role, password string) (Profile, error) {
	if len(password) < auth.MinPasswordLength {
		return Profile{}, invalidField("password", fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
	}
	user, err := s.create(ctx, name, email, role, password, false)
	if err != nil {
		return Profile{}, err
	}
	return s.Profile(user), nil
}

func (s *UserService) create(ctx context.Context, name, email, role, password string, requireChange bool) (store.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		role = model.RoleEditor
	}

	fields := map[string]string{}
	if name == "" {
		fields["name"] = "Name is required"
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		fields["email"] = "A valid email address is required"
	}
	if !model.ValidRole(role) {
		fields["role"] = "Role must be editor or admin"
	}
	if len(fields) > 0 {
		return store.User{}, &ValidationError{Fields: fields}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return store.User{}, err
	}
	now := s.now().UTC()
	user, err := s.users.CreateUser(ctx, store.CreateUserParams{
		ID:                    uuid.NewString(),
		Name:                  name,
		Email:                 email,
		PasswordHash:          hash,
		Role:                  role,
		RequirePasswordChange: requireChange,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.User{}, fmt.Errorf("%w: a user with this email", ErrConflict)
		}
		return store.User{}, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// List returns every user.
func (s *UserService) List(ctx context.Context, actor store.User) ([]Profile, error) {
	if !s.Permissions(actor).CanManageUsers {
		return nil, forbidden("Only admins can list users")
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, s.Profile(u))
	}
	return profiles, nil
}

// Delete removes the target account. Nobody can delete themselves or the
// super-admin; deleting an admin requires the delete-admins permission.
func (s *UserService) Delete(ctx context.Context, actor store.User, targetID, ip string) error {
	perms := s.Permissions(actor)
	if !perms.CanManageUsers {
		return forbidden("Only admins can delete users")
	}
	if targetID == actor.ID {
		return forbidden("You cannot delete your own account")
	}

	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if model.IsSuperAdmin(target.Email, s.superAdminEmail) {
		return forbidden("The super admin account cannot be deleted")
	}
	if target.Role == model.RoleAdmin && !perms.CanDeleteAdmins {
		return forbidden("You do not have permission to delete admin accounts")
	}

	if err := s.users.DeleteUser(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.auditUser(ctx, "User deleted", actor.ID, targetID, ip)
	return nil
}

// SetCanDeleteAdmins grants or revokes the delete-admins permission of an
// admin. Only the super-admin may do this, and its own flags are fixed.
func (s *UserService) SetCanDeleteAdmins(ctx context.Context, actor store.User, targetID string, allowed bool, ip string) (Profile, error) {
	if !s.Permissions(actor).IsSuperAdmin {
		return Profile{}, forbidden("Only the super admin can change permissions")
	}

	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	if model.IsSuperAdmin(target.Email, s.superAdminEmail) {
		return Profile{}, forbidden("Super admin permissions cannot be changed")
	}
	if target.Role != model.RoleAdmin {
		return Profile{}, invalidField("role", "Permissions can only be granted to admins")
	}

	now := s.now().UTC()
	if err := s.users.UpdateUserCanDeleteAdmins(ctx, targetID, allowed, now); err != nil {
		return Profile{}, err
	}
	target.CanDeleteAdmins = allowed
	target.UpdatedAt = now

	if s.events != nil {
		_ = s.events.LogUserEvent(ctx, model.EventLevelInfo, "Permissions changed", actor.ID, ip, map[string]any{
			"target_id":         targetID,
			"can_delete_admins": allowed,
		})
	}
	return s.Profile(target), nil
}

func (s *UserService) auditUser(ctx context.Context, message, actorID, targetID, ip string) {
	if s.events == nil {
		return
	}
	_ = s.events.LogUserEvent(ctx, model.EventLevelInfo, message, actorID, ip, map[string]any{
		"target_id": targetID,
	})
}

func (s *UserService) auditLogin(ctx context.Context, level, message, userID, email string, client Client) {
	if s.events == nil {
		return
	}
	meta := map[string]any{"email": email}
	if client.UserAgent != "" {
		ua := useragent.Parse(client.UserAgent)
		meta["browser"] = strings.TrimSpace(ua.Name + " " + ua.Version)
		meta["os"] = ua.OS
		meta["mobile"] = ua.Mobile
		if ua.Bot {
			meta["bot"] = true
		}
	}
	if s.geo != nil {
		if country := s.geo.LookupCountry(client.IP); country != "" {
			meta["country"] = country
		}
	}
	_ = s.events.LogAuthEvent(ctx, level, message, userID, client.IP, meta)
}
