package token

import (
	"fmt"
	"math"
	"time"

	"github.com/ghusn/apiserver/internal/autherr"
)

// Kind names the state transition a token authorizes.
type Kind string

const (
	KindConfirmAccount Kind = "confirm_account"
	KindChangeEmail    Kind = "change_email"
	KindChangePassword Kind = "change_password"
	KindResetPassword  Kind = "reset_password"
	KindSession        Kind = "session"
)

const (
	claimIntent   = "intent"
	claimUserID   = "user_id"
	claimOldEmail = "old_email"
	claimNewEmail = "new_email"
	claimEmail    = "email"
)

// Intent is the typed payload of a token. A token carries exactly one.
type Intent interface {
	Kind() Kind
	claims() map[string]any
}

// ConfirmAccount authorizes marking a user as confirmed.
type ConfirmAccount struct {
	UserID int
}

func (ConfirmAccount) Kind() Kind { return KindConfirmAccount }

func (i ConfirmAccount) claims() map[string]any {
	return map[string]any{claimUserID: i.UserID}
}

// ChangeEmail authorizes moving an account from OldEmail to NewEmail.
type ChangeEmail struct {
	OldEmail string
	NewEmail string
}

func (ChangeEmail) Kind() Kind { return KindChangeEmail }

func (i ChangeEmail) claims() map[string]any {
	return map[string]any{claimOldEmail: i.OldEmail, claimNewEmail: i.NewEmail}
}

// ChangePassword authorizes a logged-in user to set a new password.
type ChangePassword struct {
	UserID int
}

func (ChangePassword) Kind() Kind { return KindChangePassword }

func (i ChangePassword) claims() map[string]any {
	return map[string]any{claimUserID: i.UserID}
}

// ResetPassword authorizes setting a new password for the account owning Email.
type ResetPassword struct {
	Email string
}

func (ResetPassword) Kind() Kind { return KindResetPassword }

func (i ResetPassword) claims() map[string]any {
	return map[string]any{claimEmail: i.Email}
}

// Session identifies a logged-in user on the HTTP API.
type Session struct {
	UserID int
}

func (Session) Kind() Kind { return KindSession }

func (i Session) claims() map[string]any {
	return map[string]any{claimUserID: i.UserID}
}

// IssueIntent issues a token for intent.
func (c *Codec) IssueIntent(intent Intent, ttl time.Duration) (string, error) {
	payload := intent.claims()
	payload[claimIntent] = string(intent.Kind())
	return c.Issue(payload, ttl)
}

// RedeemIntent redeems tokenString and decodes it as an intent of kind want.
//
// A valid token issued for another kind, or missing its subject fields, fails
// with autherr.TokenPayloadMismatch.
func (c *Codec) RedeemIntent(tokenString string, want Kind) (Intent, error) {
	claims, err := c.Redeem(tokenString)
	if err != nil {
		return nil, err
	}

	got, _ := claims[claimIntent].(string)
	if Kind(got) != want {
		return nil, autherr.Newf(autherr.TokenPayloadMismatch,
			fmt.Sprintf("token is not a %s token", want))
	}

	switch want {
	case KindConfirmAccount:
		id, err := intClaim(claims, claimUserID)
		if err != nil {
			return nil, err
		}
		return ConfirmAccount{UserID: id}, nil
	case KindChangePassword:
		id, err := intClaim(claims, claimUserID)
		if err != nil {
			return nil, err
		}
		return ChangePassword{UserID: id}, nil
	case KindSession:
		id, err := intClaim(claims, claimUserID)
		if err != nil {
			return nil, err
		}
		return Session{UserID: id}, nil
	case KindChangeEmail:
		oldEmail, err := stringClaim(claims, claimOldEmail)
		if err != nil {
			return nil, err
		}
		newEmail, err := stringClaim(claims, claimNewEmail)
		if err != nil {
			return nil, err
		}
		return ChangeEmail{OldEmail: oldEmail, NewEmail: newEmail}, nil
	case KindResetPassword:
		email, err := stringClaim(claims, claimEmail)
		if err != nil {
			return nil, err
		}
		return ResetPassword{Email: email}, nil
	default:
		return nil, autherr.Newf(autherr.TokenPayloadMismatch, fmt.Sprintf("unknown intent %q", want))
	}
}

func intClaim(claims map[string]any, key string) (int, error) {
	switch v := claims[key].(type) {
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, autherr.Newf(autherr.TokenPayloadMismatch, fmt.Sprintf("token claim %q is missing or not an integer", key))
}

func stringClaim(claims map[string]any, key string) (string, error) {
	v, ok := claims[key].(string)
	if !ok {
		return "", autherr.Newf(autherr.TokenPayloadMismatch, fmt.Sprintf("token claim %q is missing or not a string", key))
	}
	return v, nil
}
