package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://idp.example.com/realms/shop"
	testClientID = "storefront"
	testKeyID    = "test-key"
)

type keyPair struct {
	private jwk.Key
	public  jwk.Set
}

func newKeyPair(t *testing.T) keyPair {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	private, err := jwk.Import(raw)
	require.NoError(t, err)
	require.NoError(t, private.Set(jwk.KeyIDKey, testKeyID))
	require.NoError(t, private.Set(jwk.AlgorithmKey, jwa.RS256()))

	public, err := jwk.Import(&raw.PublicKey)
	require.NoError(t, err)
	require.NoError(t, public.Set(jwk.KeyIDKey, testKeyID))
	require.NoError(t, public.Set(jwk.AlgorithmKey, jwa.RS256()))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))
	return keyPair{private: private, public: set}
}

func (kp keyPair) sign(t *testing.T, issuer, azp string) string {
	t.Helper()
	token, err := jwt.NewBuilder().
		Subject("user-123").
		Issuer(issuer).
		Claim("azp", azp).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256(), kp.private))
	require.NoError(t, err)
	return string(signed)
}

func testIdP(minInterval time.Duration) config.IdP {
	return config.IdP{
		Enabled:     true,
		JwksURL:     "https://idp.example.com/certs",
		Issuer:      testIssuer,
		ClientID:    testClientID,
		MinInterval: minInterval,
	}
}

func TestJWTVerifier_Verify(t *testing.T) {
	kp := newKeyPair(t)
	other := newKeyPair(t)

	tests := []struct {
		name        string
		token       string
		wantErr     bool
		wantSubject string
	}{
		{name: "valid", token: kp.sign(t, testIssuer, testClientID), wantSubject: "user-123"},
		{name: "wrong issuer", token: kp.sign(t, "https://evil.example.com", testClientID), wantErr: true},
		{name: "wrong authorized party", token: kp.sign(t, testIssuer, "admin-cli"), wantErr: true},
		{name: "unknown signing key", token: other.sign(t, testIssuer, testClientID), wantErr: true},
		{name: "garbage", token: "not.a.jwt", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			v, err := newJWTVerifier(context.Background(), testIdP(time.Hour), func(context.Context, string) (jwk.Set, error) {
				return kp.public, nil
			})
			require.NoError(t, err)

			// when
			token, err := v.Verify(context.Background(), tt.token)

			// then
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			subject, ok := token.Subject()
			assert.True(t, ok)
			assert.Equal(t, tt.wantSubject, subject)
		})
	}
}

func TestJWTVerifier_InitialFetchFails(t *testing.T) {
	_, err := newJWTVerifier(context.Background(), testIdP(time.Hour), func(context.Context, string) (jwk.Set, error) {
		return nil, errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial JWKS fetch failed")
}

func TestJWTVerifier_CachesKeySet(t *testing.T) {
	// given
	kp := newKeyPair(t)
	var fetches atomic.Int32
	v, err := newJWTVerifier(context.Background(), testIdP(time.Hour), func(context.Context, string) (jwk.Set, error) {
		fetches.Add(1)
		return kp.public, nil
	})
	require.NoError(t, err)

	// when
	for range 3 {
		_, err := v.Verify(context.Background(), kp.sign(t, testIssuer, testClientID))
		require.NoError(t, err)
	}

	// then
	assert.Equal(t, int32(1), fetches.Load())
}

func TestJWTVerifier_FallsBackToCachedSet(t *testing.T) {
	// given
	kp := newKeyPair(t)
	var fetches atomic.Int32
	v, err := newJWTVerifier(context.Background(), testIdP(0), func(context.Context, string) (jwk.Set, error) {
		if fetches.Add(1) > 1 {
			return nil, errors.New("idp unavailable")
		}
		return kp.public, nil
	})
	require.NoError(t, err)

	// when
	_, err = v.Verify(context.Background(), kp.sign(t, testIssuer, testClientID))

	// then
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetches.Load())
}
