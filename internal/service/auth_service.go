package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
)

// Verification outcomes. ErrInvalidCredentials covers both unknown
// username and wrong password; the two are indistinguishable to callers,
// including in timing. ErrVerifierUnavailable means the credential store
// failed and the client may retry.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrVerifierUnavailable = errors.New("credential verification unavailable")
	ErrUsernameTaken       = errors.New("username already registered")
)

// AuthService coordinates registration, login and logout flows.
type AuthService struct {
	users      repository.UserRepository
	codec      *auth.TokenCodec
	revoked    auth.RevocationList
	dispatcher events.Dispatcher
	bcryptCost int
}

// AuthDependencies encapsulates collaborator requirements for the service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Codec      *auth.TokenCodec
	Revoked    auth.RevocationList
	Dispatcher events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		codec:      deps.Codec,
		revoked:    deps.Revoked,
		dispatcher: deps.Dispatcher,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Register creates a new account with the standard role. Administrator
// credentials are seeded out-of-band; the role is never accepted from
// the request.
func (s *AuthService) Register(ctx context.Context, name, username, password string) (*domain.User, string, time.Time, error) {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, "", time.Time{}, ErrUsernameTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	user := &domain.User{
		Name:         name,
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}

	token, exp, err := s.codec.Issue(user.ID, user.Role, time.Now())
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.publish(ctx, events.Event{Type: events.EventUserRegistered, SubjectID: user.ID})
	return user, token, exp, nil
}

// Login verifies a username/password pair and issues a token. Unknown
// usernames still pay a hash comparison so the miss path is not
// observably faster than a wrong password.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			auth.BurnPasswordCompare(password)
			s.publishLoginFailed(ctx, username, "unknown username")
			return nil, "", time.Time{}, ErrInvalidCredentials
		}
		return nil, "", time.Time{}, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.publishLoginFailed(ctx, username, "wrong password")
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	token, exp, err := s.codec.Issue(user.ID, user.Role, time.Now())
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.publish(ctx, events.Event{Type: events.EventLoginSucceeded, SubjectID: user.ID})
	return user, token, exp, nil
}

// Logout revokes the presented token for the remainder of its lifetime.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if s.revoked == nil {
		return nil
	}
	if err := s.revoked.Revoke(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
		return fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	s.publish(ctx, events.Event{
		Type:      events.EventTokenRevoked,
		SubjectID: principal.Identity.SubjectID,
		Payload: events.TokenRevokedPayload{
			TokenID:   principal.TokenID,
			ExpiresAt: principal.ExpiresAt,
		},
	})
	return nil
}

// ChangePassword verifies the current password before updating the hash.
func (s *AuthService) ChangePassword(ctx context.Context, subjectID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	return nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	s.dispatcher.Publish(ctx, event)
}

func (s *AuthService) publishLoginFailed(ctx context.Context, username, reason string) {
	s.publish(ctx, events.Event{
		Type:    events.EventLoginFailed,
		Payload: events.LoginFailedPayload{Username: username, Reason: reason},
	})
}
