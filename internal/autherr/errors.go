// Package autherr defines the account error taxonomy.
//
// Every failure the account core reports to its caller is an *Error carrying a
// Kind. Kinds are grouped into three categories (login, registration, token) so
// callers can match either a single kind or a whole branch:
//
//	errors.Is(err, autherr.ErrLogin)         // any login failure
//	errors.Is(err, autherr.ErrTokenExpired)  // one specific kind
//	switch autherr.KindOf(err) { ... }       // exhaustive match
package autherr

import "errors"

// Category groups related kinds.
type Category int

const (
	CategoryNone Category = iota
	CategoryLogin
	CategoryRegistration
	CategoryToken
)

func (c Category) String() string {
	switch c {
	case CategoryLogin:
		return "login"
	case CategoryRegistration:
		return "registration"
	case CategoryToken:
		return "token"
	default:
		return "none"
	}
}

// Kind identifies one failure variant.
type Kind int

const (
	KindNone Kind = iota

	UserNotFound
	PasswordMismatch

	EmailAlreadyExists
	UsernameAlreadyExists

	TokenInvalid
	TokenExpired
	TokenBadSignature
	TokenMalformed
	TokenPayloadMismatch
)

// Category returns the branch of the taxonomy k belongs to.
func (k Kind) Category() Category {
	switch k {
	case UserNotFound, PasswordMismatch:
		return CategoryLogin
	case EmailAlreadyExists, UsernameAlreadyExists:
		return CategoryRegistration
	case TokenInvalid, TokenExpired, TokenBadSignature, TokenMalformed, TokenPayloadMismatch:
		return CategoryToken
	default:
		return CategoryNone
	}
}

func (k Kind) String() string {
	switch k {
	case UserNotFound:
		return "user not found"
	case PasswordMismatch:
		return "password mismatch"
	case EmailAlreadyExists:
		return "email already exists"
	case UsernameAlreadyExists:
		return "username already exists"
	case TokenInvalid:
		return "invalid token"
	case TokenExpired:
		return "token expired"
	case TokenBadSignature:
		return "invalid token signature"
	case TokenMalformed:
		return "malformed token"
	case TokenPayloadMismatch:
		return "token payload does not match"
	default:
		return "none"
	}
}

// Error is the concrete error type for every Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New returns an *Error of the given kind with its default message.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Newf returns an *Error of the given kind with a custom message.
func Newf(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an *Error of the given kind that keeps cause in its chain.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the same kind, or the category sentinel of e.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case *Error:
		return t.Kind == e.Kind
	case categoryError:
		return t.category == e.Kind.Category()
	case anyAuth:
		return true
	}
	return false
}

type categoryError struct {
	category Category
}

func (c categoryError) Error() string {
	return c.category.String() + " error"
}

var (
	// ErrAuth matches any *Error.
	ErrAuth error = anyAuth{}

	ErrLogin        error = categoryError{CategoryLogin}
	ErrRegistration error = categoryError{CategoryRegistration}
	ErrToken        error = categoryError{CategoryToken}

	ErrUserNotFound          = New(UserNotFound)
	ErrPasswordMismatch      = New(PasswordMismatch)
	ErrEmailAlreadyExists    = New(EmailAlreadyExists)
	ErrUsernameAlreadyExists = New(UsernameAlreadyExists)
	ErrTokenInvalid          = New(TokenInvalid)
	ErrTokenExpired          = New(TokenExpired)
	ErrTokenBadSignature     = New(TokenBadSignature)
	ErrTokenMalformed        = New(TokenMalformed)
	ErrTokenPayloadMismatch  = New(TokenPayloadMismatch)
)

type anyAuth struct{}

func (anyAuth) Error() string { return "authentication failed" }

// KindOf returns the Kind of the first *Error in err's chain, or KindNone.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// CategoryOf returns the Category of err, or CategoryNone.
func CategoryOf(err error) Category {
	return KindOf(err).Category()
}

// IsAuth reports whether err belongs to the taxonomy at all.
func IsAuth(err error) bool {
	return KindOf(err) != KindNone
}
