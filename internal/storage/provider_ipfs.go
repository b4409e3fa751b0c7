package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/stellarnodeN/recrusearch/pkg/platform/sentinel"
)

// IPFSClient stores blobs through an IPFS node's HTTP API (Kubo-compatible:
// /api/v0/add and /api/v0/cat). Pinning services that speak the same API
// work unchanged; the api key is sent as a bearer token when set.
type IPFSClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewIPFSClient builds an IPFS-backed client. timeout bounds each individual
// attempt; the retry policy around attempts lives in Retrying, not here.
func NewIPFSClient(endpoint, apiKey string, timeout time.Duration) *IPFSClient {
	return &IPFSClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type addResponse struct {
	Hash string `json:"Hash"`
}

func (c *IPFSClient) Put(ctx context.Context, blob []byte) (ContentID, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "blob")
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(blob); err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/v0/add?pin=true", &body)
	if err != nil {
		return "", fmt.Errorf("build add request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransportErr(ctx, "add", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus("add", resp.StatusCode)
	}

	var decoded addResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode add response: %w", err)
	}
	id := ContentID(decoded.Hash)
	if err := id.Validate(); err != nil {
		return "", fmt.Errorf("add returned malformed cid: %w", err)
	}
	return id, nil
}

func (c *IPFSClient) Get(ctx context.Context, id ContentID) ([]byte, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	endpoint := c.endpoint + "/api/v0/cat?arg=" + url.QueryEscape(id.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build cat request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportErr(ctx, "cat", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("cat", resp.StatusCode)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportErr(ctx, "cat", err)
	}
	return blob, nil
}

func (c *IPFSClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// classifyTransportErr maps network-level failures onto the sentinel
// taxonomy. The caller's own cancellation passes through untouched; a
// per-attempt client timeout is a transient fact about the network, not an
// abandonment, so it stays retryable.
func classifyTransportErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("ipfs %s: %w", op, ctxErr)
	}
	return fmt.Errorf("ipfs %s: %v: %w", op, err, sentinel.ErrUnavailable)
}

func classifyStatus(op string, status int) error {
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("ipfs %s: %w", op, sentinel.ErrNotFound)
	case status >= 500 || status == http.StatusTooManyRequests:
		return fmt.Errorf("ipfs %s: status %d: %w", op, status, sentinel.ErrUnavailable)
	default:
		return fmt.Errorf("ipfs %s: unexpected status %d", op, status)
	}
}
