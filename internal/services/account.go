package services

import (
	"context"
	"errors"
	"time"

	"github.com/ghusn/apiserver/internal/autherr"
	"github.com/ghusn/apiserver/internal/mail"
	"github.com/ghusn/apiserver/internal/store"
	"github.com/ghusn/apiserver/internal/token"
	"github.com/ghusn/apiserver/types"
	"go.uber.org/zap"
)

const (
	subjectConfirm        = "Confirm Your Account"
	subjectChangeEmail    = "Confirm your email address"
	subjectChangePassword = "Change your password"
	subjectResetPassword  = "Reset Your Password"
)

// AccountService implements registration, login and every token-gated
// account change. The acting user is always passed in explicitly.
//
// Each sensitive change is split in two: a request step that checks
// preconditions, issues a token and mails it, and a redemption step that
// verifies the token against the user as currently stored before mutating.
type AccountService struct {
	users    UserRepository
	roles    RoleRepository
	codec    *token.Codec
	notifier Notifier
	hasher   PasswordHasher
	logger   *zap.Logger

	tokenTTL   time.Duration
	sessionTTL time.Duration
}

// Option configures an AccountService.
type Option func(*AccountService)

// WithHasher replaces the default bcrypt hasher.
func WithHasher(h PasswordHasher) Option {
	return func(s *AccountService) { s.hasher = h }
}

// WithTokenTTL sets the lifetime of mailed tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *AccountService) { s.tokenTTL = ttl }
}

// WithSessionTTL sets the lifetime of session tokens.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *AccountService) { s.sessionTTL = ttl }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *AccountService) { s.logger = l }
}

// WithRoles assigns the default role to new accounts.
func WithRoles(roles RoleRepository) Option {
	return func(s *AccountService) { s.roles = roles }
}

func NewAccountService(users UserRepository, codec *token.Codec, notifier Notifier, opts ...Option) *AccountService {
	s := &AccountService{
		users:      users,
		codec:      codec,
		notifier:   notifier,
		hasher:     BcryptHasher{},
		logger:     zap.NewNop(),
		tokenTTL:   token.DefaultTTL,
		sessionTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an unconfirmed account and mails a confirmation link.
// An email collision is reported ahead of a username collision. Once the
// user is stored, registration succeeds even if the mail cannot be queued.
func (s *AccountService) Register(ctx context.Context, email, username, password string) (types.User, error) {
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return types.User{}, err
	}
	if err := s.ensureUsernameFree(ctx, username, 0); err != nil {
		return types.User{}, err
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, err
	}

	user := types.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
	}
	if s.roles != nil {
		role, err := s.roles.GetDefault(ctx)
		switch {
		case err == nil:
			user.RoleID = &role.ID
		case !errors.Is(err, store.ErrNotFound):
			return types.User{}, err
		}
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return types.User{}, err
	}

	if err := s.SendConfirmationMail(ctx, created); err != nil {
		s.logger.Error("queue confirmation mail failed",
			zap.Int("user_id", created.ID), zap.Error(err))
	}
	return created, nil
}

// Authenticate returns the user owning email if password matches.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, autherr.New(autherr.UserNotFound)
		}
		return types.User{}, err
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return types.User{}, autherr.New(autherr.PasswordMismatch)
	}
	return user, nil
}

// ConfirmUser redeems a confirmation token for user. It reports whether the
// account changed: confirming an already confirmed account is a no-op that
// returns false.
func (s *AccountService) ConfirmUser(ctx context.Context, user *types.User, tokenString string) (bool, error) {
	intent, err := s.codec.RedeemIntent(tokenString, token.KindConfirmAccount)
	if err != nil {
		return false, err
	}
	if intent.(token.ConfirmAccount).UserID != user.ID {
		return false, autherr.Newf(autherr.TokenPayloadMismatch, "token was issued for another account")
	}

	stored, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return false, err
	}
	if stored.Confirmed {
		*user = stored
		return false, nil
	}

	stored.Confirmed = true
	updated, err := s.users.Update(ctx, stored)
	if err != nil {
		return false, err
	}
	*user = updated
	return true, nil
}

// SendConfirmationMail mails user a fresh confirmation link.
func (s *AccountService) SendConfirmationMail(ctx context.Context, user types.User) error {
	tok, err := s.codec.IssueIntent(token.ConfirmAccount{UserID: user.ID}, s.tokenTTL)
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, mail.Notification{
		To:       user.Email,
		Subject:  subjectConfirm,
		Template: mail.TemplateConfirm,
		Context:  map[string]any{"token": tok, "username": user.Username},
	})
	return nil
}

// UpdateProfile renames user. Keeping the current username is a no-op.
func (s *AccountService) UpdateProfile(ctx context.Context, user *types.User, username string) error {
	if username == user.Username {
		return nil
	}
	if err := s.ensureUsernameFree(ctx, username, user.ID); err != nil {
		return err
	}

	stored, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	stored.Username = username
	updated, err := s.users.Update(ctx, stored)
	if err != nil {
		return err
	}
	*user = updated
	return nil
}

// UpdateEmailRequest mails a change-email link to newEmail, so only the
// owner of the new address can complete the change. Requesting the current
// address is a no-op.
func (s *AccountService) UpdateEmailRequest(ctx context.Context, user types.User, newEmail string) error {
	if newEmail == user.Email {
		return nil
	}
	if err := s.ensureEmailFree(ctx, newEmail, user.ID); err != nil {
		return err
	}

	tok, err := s.codec.IssueIntent(token.ChangeEmail{OldEmail: user.Email, NewEmail: newEmail}, s.tokenTTL)
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, mail.Notification{
		To:       newEmail,
		Subject:  subjectChangeEmail,
		Template: mail.TemplateChangeEmail,
		Context:  map[string]any{"token": tok, "username": user.Username, "new_email": newEmail},
	})
	return nil
}

// UpdateEmail redeems a change-email token. The token's old address must
// still be the user's address, both in the caller's copy and in storage.
func (s *AccountService) UpdateEmail(ctx context.Context, user *types.User, tokenString string) error {
	intent, err := s.codec.RedeemIntent(tokenString, token.KindChangeEmail)
	if err != nil {
		return err
	}
	change := intent.(token.ChangeEmail)
	if change.OldEmail != user.Email {
		return autherr.Newf(autherr.TokenPayloadMismatch, "token was issued for another address")
	}

	stored, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if change.OldEmail != stored.Email {
		return autherr.Newf(autherr.TokenPayloadMismatch, "account address changed since the token was issued")
	}

	stored.Email = change.NewEmail
	updated, err := s.users.Update(ctx, stored)
	if err != nil {
		return err
	}
	*user = updated
	return nil
}

// PasswordChangeRequest mails user a change-password link once password
// proves knowledge of the current one.
func (s *AccountService) PasswordChangeRequest(ctx context.Context, user types.User, password string) error {
	stored, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(stored.PasswordHash, password) {
		return autherr.New(autherr.PasswordMismatch)
	}

	tok, err := s.codec.IssueIntent(token.ChangePassword{UserID: stored.ID}, s.tokenTTL)
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, mail.Notification{
		To:       stored.Email,
		Subject:  subjectChangePassword,
		Template: mail.TemplateChangePassword,
		Context:  map[string]any{"token": tok, "username": stored.Username},
	})
	return nil
}

// ChangePassword redeems a change-password token issued for user.
func (s *AccountService) ChangePassword(ctx context.Context, user *types.User, tokenString, newPassword string) error {
	intent, err := s.codec.RedeemIntent(tokenString, token.KindChangePassword)
	if err != nil {
		return err
	}
	if intent.(token.ChangePassword).UserID != user.ID {
		return autherr.Newf(autherr.TokenPayloadMismatch, "token was issued for another account")
	}

	stored, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	updated, err := s.setPassword(ctx, stored, newPassword)
	if err != nil {
		return err
	}
	*user = updated
	return nil
}

// ResetPasswordRequest mails a reset link to the account owning email. It
// fails with autherr.UserNotFound for unknown addresses; callers facing the
// public should not reveal that.
func (s *AccountService) ResetPasswordRequest(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return autherr.New(autherr.UserNotFound)
		}
		return err
	}

	tok, err := s.codec.IssueIntent(token.ResetPassword{Email: user.Email}, s.tokenTTL)
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, mail.Notification{
		To:       user.Email,
		Subject:  subjectResetPassword,
		Template: mail.TemplateResetPassword,
		Context:  map[string]any{"token": tok, "username": user.Username},
	})
	return nil
}

// ResetPassword redeems a reset token and sets newPassword on the account
// that currently owns the token's address.
func (s *AccountService) ResetPassword(ctx context.Context, tokenString, newPassword string) error {
	intent, err := s.codec.RedeemIntent(tokenString, token.KindResetPassword)
	if err != nil {
		return err
	}
	email := intent.(token.ResetPassword).Email
	if !validEmail(email) {
		return autherr.Newf(autherr.TokenPayloadMismatch, "token carries an invalid address")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return autherr.Newf(autherr.TokenPayloadMismatch, "no account owns the token's address")
		}
		return err
	}
	_, err = s.setPassword(ctx, user, newPassword)
	return err
}

// IssueSession returns a bearer token identifying user.
func (s *AccountService) IssueSession(user types.User) (string, error) {
	return s.codec.IssueIntent(token.Session{UserID: user.ID}, s.sessionTTL)
}

// SessionUser resolves a bearer token to the user it was issued for. A
// token whose account no longer exists fails with autherr.UserNotFound.
func (s *AccountService) SessionUser(ctx context.Context, tokenString string) (types.User, error) {
	intent, err := s.codec.RedeemIntent(tokenString, token.KindSession)
	if err != nil {
		return types.User{}, err
	}
	user, err := s.users.GetByID(ctx, intent.(token.Session).UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, autherr.New(autherr.UserNotFound)
		}
		return types.User{}, err
	}
	return user, nil
}

func (s *AccountService) setPassword(ctx context.Context, user types.User, password string) (types.User, error) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, err
	}
	user.PasswordHash = hashed
	return s.users.Update(ctx, user)
}

// ensureEmailFree fails unless email is unused or owned by selfID.
func (s *AccountService) ensureEmailFree(ctx context.Context, email string, selfID int) error {
	other, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID == selfID:
		return nil
	default:
		return autherr.New(autherr.EmailAlreadyExists)
	}
}

func (s *AccountService) ensureUsernameFree(ctx context.Context, username string, selfID int) error {
	other, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID == selfID:
		return nil
	default:
		return autherr.New(autherr.UsernameAlreadyExists)
	}
}
