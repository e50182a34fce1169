package helpers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/pkg/jwt"
)

const testIssuer = "exitlane-test"

// Personas are the three kinds of account every marketplace flow involves
type Personas struct {
	Admin  *model.User
	Seller *model.User
	Buyer  *model.User
}

// NewPersonas returns unsaved users with stable ids
func NewPersonas() Personas {
	return Personas{
		Admin:  &model.User{ID: "user:admin", Email: "admin@exitlane.test", Role: model.UserRoleAdmin},
		Seller: &model.User{ID: "user:seller", Email: "seller@exitlane.test", Role: model.UserRoleUser},
		Buyer:  &model.User{ID: "user:buyer", Email: "buyer@exitlane.test", Role: model.UserRoleUser},
	}
}

// JWTHelper issues and validates access tokens with an in-memory key. It
// satisfies middleware.AuthService.
type JWTHelper struct {
	service *jwt.Service
}

// NewJWTHelper creates a JWT helper backed by a fresh RSA key, so tokens
// from two helpers never validate against each other.
func NewJWTHelper(t *testing.T) *JWTHelper {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("helpers: failed to generate RSA key: %v", err)
	}
	return &JWTHelper{service: jwt.NewTestService(privateKey, testIssuer, 15*time.Minute)}
}

func claimsFor(user *model.User) jwt.Claims {
	return jwt.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject: user.ID,
		},
	}
}

func (h *JWTHelper) sign(claims jwt.Claims) string {
	token, err := h.service.Sign(claims)
	if err != nil {
		panic("helpers: failed to sign token: " + err.Error())
	}
	return token
}

// GenerateToken signs a current access token for user
func (h *JWTHelper) GenerateToken(user *model.User) string {
	return h.sign(claimsFor(user))
}

// GenerateExpiredToken signs a token that expired an hour ago
func (h *JWTHelper) GenerateExpiredToken(user *model.User) string {
	claims := claimsFor(user)
	claims.ExpiresAt = gojwt.NewNumericDate(time.Now().Add(-time.Hour))
	return h.sign(claims)
}

// ValidateAccessToken validates a token issued by this helper
func (h *JWTHelper) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return h.service.Validate(token)
}

// RequestBuilder helps construct HTTP requests for testing
type RequestBuilder struct {
	t       *testing.T
	method  string
	path    string
	body    any
	headers http.Header
	token   string
}

// NewRequest creates a new request builder
func NewRequest(t *testing.T, method, path string) *RequestBuilder {
	t.Helper()
	return &RequestBuilder{
		t:       t,
		method:  method,
		path:    path,
		headers: make(http.Header),
	}
}

// WithBody sets a body that is JSON encoded on Build
func (rb *RequestBuilder) WithBody(body any) *RequestBuilder {
	rb.body = body
	return rb
}

// WithHeader sets a header on the request
func (rb *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	rb.headers.Set(key, value)
	return rb
}

// WithAuth signs a bearer token for user
func (rb *RequestBuilder) WithAuth(h *JWTHelper, user *model.User) *RequestBuilder {
	rb.token = h.GenerateToken(user)
	return rb
}

// WithIdempotencyKey marks the request as a retryable write
func (rb *RequestBuilder) WithIdempotencyKey(key string) *RequestBuilder {
	return rb.WithHeader("Idempotency-Key", key)
}

// Build creates the HTTP request
func (rb *RequestBuilder) Build() *http.Request {
	rb.t.Helper()

	var bodyReader io.Reader
	if rb.body != nil {
		bodyBytes, err := json.Marshal(rb.body)
		if err != nil {
			rb.t.Fatalf("helpers: failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(rb.method, rb.path, bodyReader)
	if rb.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range rb.headers {
		req.Header[k] = v
	}
	if rb.token != "" {
		req.Header.Set("Authorization", "Bearer "+rb.token)
	}
	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if resp.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, resp.Code, resp.Body.String())
	}
}

// AssertProblemDetails validates an RFC 9457 problem response. A zero
// expectedCode only checks the status.
func AssertProblemDetails(t *testing.T, resp *httptest.ResponseRecorder, expectedStatus int, expectedCode model.ErrorCode) {
	t.Helper()

	AssertStatus(t, resp, expectedStatus)
	if ct := resp.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem content type, got %q", ct)
	}

	var problem model.ProblemDetails
	if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode problem details: %v. Body: %s", err, resp.Body.String())
	}
	if problem.Status != expectedStatus {
		t.Errorf("expected problem.status %d, got %d", expectedStatus, problem.Status)
	}
	if expectedCode != 0 && problem.Code != expectedCode {
		t.Errorf("expected problem.code %d, got %d", expectedCode, problem.Code)
	}
}

// AssertCollectionLen decodes a {"data": [...]} body and checks its length
func AssertCollectionLen(t *testing.T, resp *httptest.ResponseRecorder, n int) {
	t.Helper()

	var body struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode collection: %v. Body: %s", err, resp.Body.String())
	}
	if len(body.Data) != n {
		t.Errorf("expected %d items, got %d", n, len(body.Data))
	}
}

// AssertRecordExists checks that table:id is present in the database
func AssertRecordExists(t *testing.T, db database.Database, table, id string) {
	t.Helper()
	if !recordExists(t, db, table, id) {
		t.Errorf("expected record %s:%s to exist", table, recordPart(id))
	}
}

// AssertRecordNotExists checks that table:id is absent
func AssertRecordNotExists(t *testing.T, db database.Database, table, id string) {
	t.Helper()
	if recordExists(t, db, table, id) {
		t.Errorf("expected record %s:%s to be gone", table, recordPart(id))
	}
}

func recordExists(t *testing.T, db database.Database, table, id string) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := db.Query(ctx, "SELECT id FROM type::record($table, $id)", map[string]interface{}{
		"table": table,
		"id":    recordPart(id),
	})
	if err != nil {
		t.Fatalf("failed to query for record: %v", err)
	}
	return hasResults(results)
}

// recordPart strips the table prefix from a full record id
func recordPart(id string) string {
	if _, rest, ok := strings.Cut(id, ":"); ok {
		return rest
	}
	return id
}

// hasResults reports whether the first statement of a SurrealDB response
// returned any rows
func hasResults(results []interface{}) bool {
	if len(results) == 0 {
		return false
	}
	resp, ok := results[0].(map[string]interface{})
	if !ok {
		return false
	}

	switch v := resp["result"].(type) {
	case []interface{}:
		return len(v) > 0
	case nil:
		return false
	default:
		return true
	}
}
