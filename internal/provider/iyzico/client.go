// Package iyzico is a client for the iyzico hosted checkout form API.
//
// Operations follow the callback style of the vendor SDKs: they return
// immediately and invoke the completion callback exactly once from a
// background goroutine.
package iyzico

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	initializePath = "/payment/iyzipos/checkoutform/initialize/auth/ecom"
	retrievePath   = "/payment/iyzipos/checkoutform/auth/ecom/detail"

	authScheme = "IYZWSv2"
)

// Config holds the API credentials.
type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Client calls the iyzico REST API.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

// NewClient creates a new Client. If httpClient is nil a client with the
// configured timeout is used.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient, now: time.Now}
}

// CreateCheckoutForm initialises a hosted checkout form.
func (c *Client) CreateCheckoutForm(ctx context.Context, req *CheckoutFormRequest, done func(*CheckoutFormInitResult, error)) {
	go func() {
		var res CheckoutFormInitResult
		raw, err := c.post(ctx, initializePath, req, &res)
		if err != nil {
			done(nil, err)
			return
		}
		res.Raw = raw
		done(&res, nil)
	}()
}

// RetrieveCheckoutForm fetches the outcome of a checkout form.
func (c *Client) RetrieveCheckoutForm(ctx context.Context, req *RetrieveCheckoutFormRequest, done func(*CheckoutFormResult, error)) {
	go func() {
		var res CheckoutFormResult
		raw, err := c.post(ctx, retrievePath, req, &res)
		if err != nil {
			done(nil, err)
			return
		}
		res.Raw = raw
		done(&res, nil)
	}()
}

// post sends a signed request. A provider-reported failure is a decoded
// result, not an error; only transport and decoding problems are errors.
func (c *Client) post(ctx context.Context, path string, body, out any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("iyzico: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("iyzico: build request: %w", err)
	}

	randomKey, err := c.randomKey()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-iyzi-rnd", randomKey)
	req.Header.Set("Authorization", Authorization(c.cfg.APIKey, c.cfg.SecretKey, randomKey, path, payload))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("iyzico: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("iyzico: read response: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("iyzico: %s: unexpected response (HTTP %d): %w", path, resp.StatusCode, err)
	}

	return raw, nil
}

func (c *Client) randomKey() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("iyzico: random key: %w", err)
	}
	return strconv.FormatInt(c.now().UnixMilli(), 10) + hex.EncodeToString(b), nil
}

// Authorization builds the IYZWSv2 header value for a request.
func Authorization(apiKey, secretKey, randomKey, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(randomKey))
	mac.Write([]byte(path))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	params := "apiKey:" + apiKey + "&randomKey:" + randomKey + "&signature:" + signature
	return authScheme + " " + base64.StdEncoding.EncodeToString([]byte(params))
}
