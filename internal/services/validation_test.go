package services

import (
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
)

func TestUsernameRules(t *testing.T) {
	valid := []string{"alice", "a_b.c", "Abc", "a" + strings.Repeat("b", 35)}
	invalid := []string{"", "ab", "1abc", "_abc", "al ice", "alice!", "a" + strings.Repeat("b", 36)}

	for _, name := range valid {
		assert.NoError(t, validation.Validate(name, UsernameRules...), name)
	}
	for _, name := range invalid {
		assert.Error(t, validation.Validate(name, UsernameRules...), name)
	}
}

func TestEmailRules(t *testing.T) {
	assert.True(t, validEmail("a@x.com"))
	assert.False(t, validEmail(""))
	assert.False(t, validEmail("a.x.com"))
	assert.False(t, validEmail("a@"))
	assert.True(t, validEmail("first.last+tag@sub.example.org"))
	assert.False(t, validEmail(strings.Repeat("a", 60)+"@x.com"))
}

func TestPasswordRules(t *testing.T) {
	assert.NoError(t, validation.Validate("secret", PasswordRules...))
	assert.Error(t, validation.Validate("short", PasswordRules...))
	assert.Error(t, validation.Validate("", PasswordRules...))
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}

	hash, err := h.Hash("secret1")
	assert.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, h.Verify(hash, "secret1"))
	assert.False(t, h.Verify(hash, "secret2"))
	assert.False(t, h.Verify("not-a-hash", "secret1"))
}
