// Package e2e drives a running server over HTTP with godog scenarios.
// Point it at a server with BASE_URL; the server must share JWT_SIGNING_KEY
// so the harness can mint participant tokens.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestContext holds per-scenario state: the acting participant, the campaign
// under test, and the last HTTP exchange.
type TestContext struct {
	baseURL    string
	signingKey []byte
	client     *http.Client

	participantToken string
	researcherToken  string
	campaignID       string
	ownerPublicKey   string

	lastStatus int
	lastBody   map[string]any
}

func NewTestContext() *TestContext {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		signingKey = "dev-secret-key-change-in-production"
	}
	return &TestContext{
		baseURL:    baseURL,
		signingKey: []byte(signingKey),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears scenario state so scenarios stay independent.
func (tc *TestContext) Reset() {
	tc.participantToken = ""
	tc.researcherToken = ""
	tc.campaignID = ""
	tc.ownerPublicKey = ""
	tc.lastStatus = 0
	tc.lastBody = nil
}

// IssueToken mints an HS256 participant token for a fresh random identity.
func (tc *TestContext) IssueToken() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	return token.SignedString(tc.signingKey)
}

// Do performs one authenticated JSON request and captures the response.
func (tc *TestContext) Do(method, path, token string, body any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}
	req, err := http.NewRequest(method, tc.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if len(raw) > 0 {
		// Tolerate non-JSON bodies (e.g. 204 responses); assertions on
		// fields will fail with a clear message if the body was needed.
		_ = json.Unmarshal(raw, &tc.lastBody)
	}
	return nil
}

// ResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) ResponseField(field string) (any, bool) {
	if tc.lastBody == nil {
		return nil, false
	}
	v, ok := tc.lastBody[field]
	return v, ok
}
