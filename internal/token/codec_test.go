package token

import (
	"testing"
	"time"

	"github.com/ghusn/apiserver/internal/autherr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Unix(1_700_000_000, 0)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCodec(t *testing.T, secret string) (*Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: testEpoch}
	return NewCodec([]byte(secret), WithClock(clock.Now)), clock
}

func TestIssueRedeem_RoundTrip(t *testing.T) {
	codec, _ := newTestCodec(t, "secret")

	payload := map[string]any{
		"confirm": 7,
		"email":   "a@x.com",
		"nested":  map[string]any{"n": 1.5},
	}

	tok, err := codec.Issue(payload, time.Hour)
	require.NoError(t, err)

	got, err := codec.Redeem(tok)
	require.NoError(t, err)

	for key, want := range payload {
		assert.EqualValues(t, want, got[key], "claim %q", key)
	}
	assert.EqualValues(t, testEpoch.Unix(), got["iat"])
	assert.EqualValues(t, testEpoch.Unix(), got["nbf"])
	assert.EqualValues(t, testEpoch.Add(time.Hour).Unix(), got["exp"])
	assert.NotEmpty(t, got["jti"])
}

func TestIssue_DefaultTTL(t *testing.T) {
	codec, _ := newTestCodec(t, "secret")

	tok, err := codec.Issue(map[string]any{"k": "v"}, 0)
	require.NoError(t, err)

	got, err := codec.Redeem(tok)
	require.NoError(t, err)
	assert.EqualValues(t, testEpoch.Add(DefaultTTL).Unix(), got["exp"])
}

func TestRedeem_Expired(t *testing.T) {
	codec, clock := newTestCodec(t, "secret")

	tok, err := codec.Issue(map[string]any{"confirm": 1}, 30*time.Second)
	require.NoError(t, err)

	clock.Advance(29 * time.Second)
	_, err = codec.Redeem(tok)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = codec.Redeem(tok)
	assert.ErrorIs(t, err, autherr.ErrTokenExpired)
	assert.ErrorIs(t, err, autherr.ErrToken)
}

func TestRedeem_WrongSecret(t *testing.T) {
	issuer, _ := newTestCodec(t, "right-secret")
	verifier, _ := newTestCodec(t, "wrong-secret")

	tok, err := issuer.Issue(map[string]any{"confirm": 1}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Redeem(tok)
	assert.ErrorIs(t, err, autherr.ErrTokenBadSignature)
}

func TestRedeem_TamperedTokenNeverSucceeds(t *testing.T) {
	codec, _ := newTestCodec(t, "secret")

	tok, err := codec.Issue(map[string]any{"confirm": 42}, time.Hour)
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		replacement := byte('A')
		if tok[i] == 'A' {
			replacement = 'B'
		}
		tampered := tok[:i] + string(replacement) + tok[i+1:]

		_, err := codec.Redeem(tampered)
		require.Error(t, err, "tampered at %d", i)

		kind := autherr.KindOf(err)
		assert.True(t,
			kind == autherr.TokenBadSignature || kind == autherr.TokenMalformed,
			"tampered at %d: unexpected kind %v", i, kind)
	}
}

func TestRedeem_Malformed(t *testing.T) {
	codec, _ := newTestCodec(t, "secret")

	for _, input := range []string{"", "not-a-token", "not.a.jwt", "a.b.c.d"} {
		_, err := codec.Redeem(input)
		assert.ErrorIs(t, err, autherr.ErrTokenMalformed, "input %q", input)
	}
}

func TestRedeem_RejectsOtherAlgorithms(t *testing.T) {
	codec, _ := newTestCodec(t, "secret")

	claims := jwt.MapClaims{
		"confirm": 1,
		"iat":     testEpoch.Unix(),
		"exp":     testEpoch.Add(time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = codec.Redeem(tok)
	assert.ErrorIs(t, err, autherr.ErrTokenBadSignature)
}

func TestRedeem_RequiresExpiry(t *testing.T) {
	codec, _ := newTestCodec(t, "secret")

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"confirm": 1}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = codec.Redeem(tok)
	assert.ErrorIs(t, err, autherr.ErrTokenInvalid)
}

func TestRedeem_NotYetValid(t *testing.T) {
	codec, clock := newTestCodec(t, "secret")

	tok, err := codec.Issue(map[string]any{"confirm": 1}, time.Hour)
	require.NoError(t, err)

	clock.Advance(-time.Minute)
	_, err = codec.Redeem(tok)
	assert.ErrorIs(t, err, autherr.ErrTokenInvalid)
	assert.ErrorIs(t, err, autherr.ErrToken)
}
