package jwt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// ============================================================================
// Test Helpers
// ============================================================================

func newTestService(t *testing.T) *Service {
	t.Helper()
	return newTestServiceWithExpiration(t, 15*time.Minute)
}

func newTestServiceWithExpiration(t *testing.T, expiration time.Duration) *Service {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return NewTestService(privateKey, "test-issuer", expiration)
}

// ============================================================================
// Sign Tests
// ============================================================================

func TestSign_SetsRegisteredClaims(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	token, err := svc.Sign(Claims{UserID: "user:1", Email: "a@b.test", Role: "admin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected three token segments, got %q", token)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Issuer != "test-issuer" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("expected a token ID")
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		t.Fatal("expected iat and exp to be set")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 15*time.Minute {
		t.Errorf("lifetime = %v, want 15m", got)
	}
	if claims.UserID != "user:1" || claims.Email != "a@b.test" || !claims.IsAdmin() {
		t.Errorf("custom claims not preserved: %+v", claims)
	}
}

func TestSign_PreservesCustomExpiration(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token, err := svc.Sign(Claims{UserID: "u", RegisteredClaims: gojwt.RegisteredClaims{ExpiresAt: gojwt.NewNumericDate(exp)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !claims.ExpiresAt.Time.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, exp)
	}
}

func TestSign_NilPrivateKey_ReturnsErrInvalidKey(t *testing.T) {
	t.Parallel()

	svc := &Service{issuer: "x", now: time.Now}
	if _, err := svc.Sign(Claims{}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

// ============================================================================
// Validate Tests
// ============================================================================

func TestValidate_Expired_ReturnsErrTokenExpired(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	token, err := svc.Sign(Claims{UserID: "u", RegisteredClaims: gojwt.RegisteredClaims{
		ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidate_NotYetValid_ReturnsErrTokenNotYetValid(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	future := time.Now().Add(time.Hour)
	svc.now = func() time.Time { return future }
	token, err := svc.Sign(Claims{UserID: "u"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	svc.now = time.Now
	if _, err := svc.Validate(token); !errors.Is(err, ErrTokenNotYetValid) {
		t.Errorf("expected ErrTokenNotYetValid, got %v", err)
	}
}

func TestValidate_WrongIssuer_ReturnsErrInvalidToken(t *testing.T) {
	t.Parallel()

	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	signer := NewTestService(key, "other-issuer", time.Minute)
	validator := NewTestService(key, "test-issuer", time.Minute)

	token, err := signer.Sign(Claims{UserID: "u"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := validator.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidate_DifferentKey_ReturnsErrInvalidSignature(t *testing.T) {
	t.Parallel()

	token, err := newTestService(t).Sign(Claims{UserID: "u"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newTestService(t).Validate(token); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestValidate_RejectsHMACAlgorithm(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, Claims{
		UserID:           "u",
		RegisteredClaims: gojwt.RegisteredClaims{Issuer: "test-issuer"},
	}).SignedString([]byte("shared"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Validate(token); err == nil {
		t.Error("expected HS256 token to be rejected")
	}
}

func TestValidate_Malformed(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	for _, tok := range []string{"", "a", "a.b", "a.b.c.d", "!!!.@@@.###"} {
		if _, err := svc.Validate(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestValidate_NilPublicKey_ReturnsErrInvalidKey(t *testing.T) {
	t.Parallel()

	svc := &Service{now: time.Now}
	if _, err := svc.Validate("a.b.c"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestGetExpiration_ReturnsConfiguredDuration(t *testing.T) {
	t.Parallel()

	if got := newTestServiceWithExpiration(t, 42*time.Minute).GetExpiration(); got != 42*time.Minute {
		t.Errorf("GetExpiration() = %v", got)
	}
}

// ============================================================================
// NewService and Key Loading Tests
// ============================================================================

func TestGenerateKeyPair_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	if err := GenerateKeyPair(priv, pub); err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	signer, err := NewService(Config{PrivateKeyPath: priv, Issuer: "test", ExpirationMins: 15})
	if err != nil {
		t.Fatalf("load private key: %v", err)
	}
	verifier, err := NewService(Config{PublicKeyPath: pub, Issuer: "test"})
	if err != nil {
		t.Fatalf("load public key: %v", err)
	}

	token, err := signer.Sign(Claims{UserID: "u"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Validate(token); err != nil {
		t.Errorf("public-key-only service failed to validate: %v", err)
	}
	if _, err := verifier.Sign(Claims{}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected verifier to refuse signing, got %v", err)
	}
}

func TestGenerateKeyPair_InvalidPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := GenerateKeyPair("/nonexistent/dir/private.pem", dir+"/public.pem"); err == nil {
		t.Error("expected error for invalid private key path")
	}
	if err := GenerateKeyPair(dir+"/private.pem", "/nonexistent/dir/public.pem"); err == nil {
		t.Error("expected error for invalid public key path")
	}
}

func TestNewService_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a key"), 0600); err != nil {
		t.Fatal(err)
	}

	ecKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	ecBytes, _ := x509.MarshalPKIXPublicKey(&ecKey.PublicKey)
	ecPath := filepath.Join(dir, "ec.pem")
	if err := os.WriteFile(ecPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: ecBytes}), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing private key", Config{PrivateKeyPath: filepath.Join(dir, "missing.pem")}},
		{"missing public key", Config{PublicKeyPath: filepath.Join(dir, "missing.pem")}},
		{"garbage private key", Config{PrivateKeyPath: garbage}},
		{"garbage public key", Config{PublicKeyPath: garbage}},
		{"non-RSA public key", Config{PublicKeyPath: ecPath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewService_NoKeys_ReturnsService(t *testing.T) {
	t.Parallel()

	svc, err := NewService(Config{Issuer: "test"})
	if err != nil || svc == nil {
		t.Fatalf("expected service, got %v", err)
	}
}
