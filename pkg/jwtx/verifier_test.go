package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/quill/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, alg string) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: alg,
		Issuer:    "https://auth.quill.test",
		Audience:  "quill-api",
		RSABits:   2048,
		NumKeys:   1,
	})
	require.NoError(t, err)
	return km
}

func claimsAt(now time.Time, ttl time.Duration) jwtx.Claims {
	return jwtx.NewAccessClaims(
		jwtx.Subject{ID: "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", Role: "editor", Email: "ed@quill.test", Name: "Ed"},
		"sess-1",
		[]string{jwtx.AMRPassword},
		"https://auth.quill.test",
		[]string{"quill-api"},
		ttl,
		now,
	)
}

func TestSignVerify_AllAlgorithms(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{jwtx.AlgorithmEdDSA, jwtx.AlgorithmES256, jwtx.AlgorithmRS256} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()
			km := newManager(t, alg)

			token, err := km.Signer().Sign(claimsAt(time.Now(), time.Minute))
			require.NoError(t, err)
			require.Len(t, strings.Split(token, "."), 3)

			got, err := km.Verifier.Verify(token)
			require.NoError(t, err)
			require.Equal(t, "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", got.Subject)
			require.Equal(t, "editor", got.Role)
			require.Equal(t, "sess-1", got.SID)
			require.True(t, got.HasAMR(jwtx.AMRPassword))
			require.False(t, got.HasAMR(jwtx.AMRMFA))
			require.NotEmpty(t, got.ID)
		})
	}
}

func TestVerify_Rejections(t *testing.T) {
	t.Parallel()
	km := newManager(t, jwtx.AlgorithmEdDSA)

	t.Run("expired", func(t *testing.T) {
		token, err := km.Signer().Sign(claimsAt(time.Now().Add(-time.Hour), time.Minute))
		require.NoError(t, err)

		_, err = km.Verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := claimsAt(time.Now(), time.Minute)
		c.Issuer = "https://evil.test"
		token, err := km.Signer().Sign(c)
		require.NoError(t, err)

		_, err = km.Verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := claimsAt(time.Now(), time.Minute)
		c.Audience = []string{"other"}
		token, err := km.Signer().Sign(c)
		require.NoError(t, err)

		_, err = km.Verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("foreign key", func(t *testing.T) {
		other := newManager(t, jwtx.AlgorithmEdDSA)
		token, err := other.Signer().Sign(claimsAt(time.Now(), time.Minute))
		require.NoError(t, err)

		_, err = km.Verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("tampered payload", func(t *testing.T) {
		token, err := km.Signer().Sign(claimsAt(time.Now(), time.Minute))
		require.NoError(t, err)
		parts := strings.Split(token, ".")
		forged, err := newManager(t, jwtx.AlgorithmEdDSA).Signer().Sign(claimsAt(time.Now(), time.Hour))
		require.NoError(t, err)
		parts[1] = strings.Split(forged, ".")[1]

		_, err = km.Verifier.Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := km.Verifier.Verify("not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestVerify_Leeway(t *testing.T) {
	t.Parallel()
	km := newManager(t, jwtx.AlgorithmES256)

	now := time.Now()
	token, err := km.Signer().Sign(claimsAt(now, time.Minute))
	require.NoError(t, err)

	late := jwtx.NewVerifier(km.KeySet, jwtx.VerifyOptions{
		Issuer:   "https://auth.quill.test",
		Audience: "quill-api",
		Leeway:   time.Minute,
		Now:      func() time.Time { return now.Add(90 * time.Second) },
	})
	_, err = late.Verify(token)
	require.NoError(t, err)

	tooLate := jwtx.NewVerifier(km.KeySet, jwtx.VerifyOptions{
		Now: func() time.Time { return now.Add(5 * time.Minute) },
	})
	_, err = tooLate.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}
