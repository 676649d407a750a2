package middleware

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatlens/seatlens/pkg/observability"
)

type stubVerifier struct {
	principal *Principal
	err       error
}

func (s *stubVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.principal, nil
}

func serve(t *testing.T, a *Authenticator, req *http.Request) (*httptest.ResponseRecorder, *Principal, bool) {
	t.Helper()
	var (
		got    *Principal
		called bool
	)
	handler := a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		got = GetPrincipal(r)
		assert.Equal(t, got.Subject, observability.GetUserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, got, called
}

func TestAuthenticator_APIKey(t *testing.T) {
	a := NewAuthenticator(nil, []string{"first-key", "", "second-key"})

	t.Run("missing key", func(t *testing.T) {
		w, _, called := serve(t, a, httptest.NewRequest("GET", "/api/copilot/license-counts", nil))
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"API Key missing. Provide X-API-Key header or use OAuth authentication."}`, w.Body.String())
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(APIKeyHeader, "second-ke")
		w, _, called := serve(t, a, req)
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"Invalid API Key"}`, w.Body.String())
	})

	t.Run("valid key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(APIKeyHeader, "second-key")
		w, p, called := serve(t, a, req)
		require.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "api-key-2", p.Subject)
		assert.Equal(t, MethodAPIKey, p.Method)
	})
}

func TestAuthenticator_Bearer(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		a := NewAuthenticator(&stubVerifier{principal: &Principal{Subject: "oid-1", Method: MethodBearer}}, nil)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer abc.def.ghi")

		w, p, called := serve(t, a, req)
		require.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "oid-1", p.Subject)
	})

	t.Run("rejected token falls back to api key", func(t *testing.T) {
		a := NewAuthenticator(&stubVerifier{err: errors.New("expired")}, []string{"k"})
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer stale")
		req.Header.Set(APIKeyHeader, "k")

		_, p, called := serve(t, a, req)
		require.True(t, called)
		assert.Equal(t, MethodAPIKey, p.Method)
	})

	t.Run("rejected token without api key", func(t *testing.T) {
		a := NewAuthenticator(&stubVerifier{err: errors.New("expired")}, []string{"k"})
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer stale")

		w, _, called := serve(t, a, req)
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bearer without verifier", func(t *testing.T) {
		a := NewAuthenticator(nil, nil)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer abc")

		w, _, called := serve(t, a, req)
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("non bearer scheme ignored", func(t *testing.T) {
		a := NewAuthenticator(&stubVerifier{principal: &Principal{Subject: "x"}}, nil)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

		w, _, called := serve(t, a, req)
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGetPrincipal_Absent(t *testing.T) {
	assert.Nil(t, GetPrincipal(httptest.NewRequest("GET", "/", nil)))
}

// testIssuer serves OIDC discovery and a JWKS for one RSA key
type testIssuer struct {
	server *httptest.Server
	key    *rsa.PrivateKey
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	ti := &testIssuer{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                                ti.server.URL,
			"authorization_endpoint":                ti.server.URL + "/authorize",
			"token_endpoint":                        ti.server.URL + "/token",
			"jwks_uri":                              ti.server.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": "test-key",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	ti.server = httptest.NewServer(mux)
	t.Cleanup(ti.server.Close)
	return ti
}

func (ti *testIssuer) sign(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	enc := func(v interface{}) string {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(b)
	}
	signingInput := enc(map[string]string{"alg": "RS256", "kid": "test-key", "typ": "JWT"}) + "." + enc(claims)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, ti.key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func TestOIDCVerifier(t *testing.T) {
	ti := newTestIssuer(t)
	ctx := context.Background()

	v, err := NewOIDCVerifier(ctx, ti.server.URL, "api://seatlens")
	require.NoError(t, err)

	now := time.Now()
	valid := map[string]interface{}{
		"iss":                ti.server.URL,
		"aud":                "api://seatlens",
		"sub":                "subject-123",
		"preferred_username": "ana@contoso.com",
		"iat":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
	}

	t.Run("valid", func(t *testing.T) {
		p, err := v.Verify(ctx, ti.sign(t, valid))
		require.NoError(t, err)
		assert.Equal(t, "subject-123", p.Subject)
		assert.Equal(t, "ana@contoso.com", p.Name)
		assert.Equal(t, MethodBearer, p.Method)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := copyClaims(valid)
		claims["aud"] = "api://other"
		_, err := v.Verify(ctx, ti.sign(t, claims))
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		claims := copyClaims(valid)
		claims["exp"] = now.Add(-time.Hour).Unix()
		_, err := v.Verify(ctx, ti.sign(t, claims))
		assert.Error(t, err)
	})

	t.Run("tampered", func(t *testing.T) {
		token := ti.sign(t, valid)
		_, err := v.Verify(ctx, token[:len(token)-4]+"AAAA")
		assert.Error(t, err)
	})

	t.Run("through authenticator", func(t *testing.T) {
		a := NewAuthenticator(v, nil)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+ti.sign(t, valid))

		w, p, called := serve(t, a, req)
		require.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "subject-123", p.Subject)
	})
}

func TestNewOIDCVerifier_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewOIDCVerifier(context.Background(), srv.URL, "aud")
	assert.ErrorContains(t, err, "failed to discover OIDC provider")
}

func copyClaims(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
