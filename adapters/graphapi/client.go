// Package graphapi uploads images to the Facebook Graph API adimages edge.
package graphapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/Skryldev/adimage-uploader/config"
	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

const (
	op = "graph.upload"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 1 << 20

	codeAuthExpired = 190
	typeOAuth       = "OAuthException"
)

// transientCodes are Graph error codes documented as temporary: unknown and
// service errors plus the application, user and page rate limits.
var transientCodes = map[int]bool{1: true, 2: true, 4: true, 17: true, 32: true, 341: true, 613: true}

// Client is a core.Uploader backed by net/http.  Each Upload performs exactly
// one request and never retries; the pipeline owns the retry policy.
type Client struct {
	http    *http.Client
	baseURL string
	version string
	logger  core.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, whose timeout is
// config.RequestTimeout.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Client for the API base URL and version in cfg.
func New(cfg config.Config, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		version: cfg.APIVersion,
		logger:  core.NopLogger{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the adimages URL for an ad account.  A leading "act_" on
// accountID is accepted and not duplicated.
func (c *Client) Endpoint(accountID string) string {
	id := strings.TrimPrefix(accountID, "act_")
	return fmt.Sprintf("%s/%s/act_%s/adimages", c.baseURL, c.version, url.PathEscape(id))
}

// Upload posts req.Data as a multipart "file" field and returns the hash the
// API assigned to it.
func (c *Client) Upload(ctx context.Context, req core.UploadRequest) (string, error) {
	body, contentType, err := multipartBody(req)
	if err != nil {
		return "", apperrors.New(apperrors.KindInternal, op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(req.AccountID), body)
	if err != nil {
		return "", apperrors.New(apperrors.KindInternal, op, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if req.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("graph request failed", "name", req.Name, "error", err)
		if errors.Is(err, context.Canceled) {
			return "", apperrors.New(apperrors.KindTransport, op, err)
		}
		return "", apperrors.Transient(apperrors.KindTransport, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", apperrors.Transient(apperrors.KindTransport, op, err)
	}
	c.logger.Debug("graph response",
		"name", req.Name,
		"status", resp.StatusCode,
		"bytes", len(req.Data),
		"duration", time.Since(start).String())

	return parseResponse(resp.StatusCode, raw)
}

// ── Request ───────────────────────────────────────────────────────────────────

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartBody(req core.UploadRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(req.Name)))
	h.Set("Content-Type", req.Metadata.Format.ContentType())

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// ── Response ──────────────────────────────────────────────────────────────────

type graphError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	IsTransient  bool   `json:"is_transient"`
	FBTraceID    string `json:"fbtrace_id"`
}

type envelope struct {
	Images json.RawMessage `json:"images"`
	Error  *graphError     `json:"error"`
}

func parseResponse(status int, raw []byte) (string, error) {
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if decodeErr == nil && env.Error != nil {
		return "", classify(status, env.Error)
	}
	if status < 200 || status > 299 {
		ge := &graphError{Message: http.StatusText(status)}
		if ge.Message == "" {
			ge.Message = fmt.Sprintf("HTTP %d", status)
		}
		return "", classify(status, ge)
	}
	if decodeErr != nil {
		return "", apperrors.New(apperrors.KindMalformedResponse, op,
			fmt.Errorf("Unexpected response from Facebook API: %w", decodeErr))
	}

	hash, err := FirstHash(env.Images)
	if err != nil {
		return "", apperrors.New(apperrors.KindMalformedResponse, op, err)
	}
	return hash, nil
}

func classify(status int, ge *graphError) error {
	err := fmt.Errorf("Facebook API Error: %s", ge.Message)
	if status == http.StatusUnauthorized || ge.Type == typeOAuth || ge.Code == codeAuthExpired {
		return apperrors.Auth(op, status, err)
	}
	retryable := status >= 500 || status == http.StatusTooManyRequests ||
		ge.IsTransient || transientCodes[ge.Code]
	return apperrors.API(op, status, retryable, err)
}

// FirstHash returns the hash of the first entry of an "images" object in
// document order.  encoding/json maps do not preserve order, so the object is
// walked token by token.
func FirstHash(images json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(images)) == 0 || bytes.Equal(bytes.TrimSpace(images), []byte("null")) {
		return "", apperrors.ErrMissingHash
	}
	dec := json.NewDecoder(bytes.NewReader(images))
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", fmt.Errorf("images: expected object, got %v", tok)
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil { // key
			return "", err
		}
		var img struct {
			Hash string `json:"hash"`
		}
		if err := dec.Decode(&img); err != nil {
			return "", err
		}
		if img.Hash != "" {
			return img.Hash, nil
		}
	}
	return "", apperrors.ErrMissingHash
}
