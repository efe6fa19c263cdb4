// Package notion is a small client for the parts of the Notion API the
// importer uses: pages, block children, file uploads and database schema.
package notion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/jsonx"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/pause"
)

const (
	DefaultBaseURL    = "https://api.notion.com"
	DefaultAPIVersion = "2022-06-28"
)

// Operation names, used in errors and request metrics.
const (
	OpCreatePage       = "create_page"
	OpUpdatePage       = "update_page"
	OpAppendChildren   = "append_children"
	OpCreateFileUpload = "create_file_upload"
	OpSendFileUpload   = "send_file_upload"
	OpRetrieveDatabase = "retrieve_database"
)

// ResponseObserver is called once per HTTP round trip. Status is 0 when the
// request never got a response.
type ResponseObserver func(op string, status int)

type ClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	APIVersion string
	UserAgent  string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Observer   ResponseObserver
}

type Client struct {
	baseURL    string
	apiVersion string
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	observer   ResponseObserver

	// authed carries the bearer token; raw is used for presigned upload URLs.
	authed *http.Client
	raw    *http.Client
}

func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	raw := opts.HTTPClient
	if raw == nil {
		raw = &http.Client{Timeout: 60 * time.Second}
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}

	authed := &http.Client{
		Timeout:       raw.Timeout,
		CheckRedirect: raw.CheckRedirect,
		Jar:           raw.Jar,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"}),
			Base:   raw.Transport,
		},
	}

	return &Client{
		baseURL:    baseURL,
		apiVersion: apiVersion,
		userAgent:  strings.TrimSpace(opts.UserAgent),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		observer:   opts.Observer,
		authed:     authed,
		raw:        raw,
	}
}

// CreatePage creates a page in the given database.
func (c *Client) CreatePage(ctx context.Context, databaseID string, props Properties) (Page, error) {
	var page Page
	err := c.doJSON(ctx, OpCreatePage, http.MethodPost, "/v1/pages", createPageRequest{
		Parent:     Parent{DatabaseID: databaseID},
		Properties: props,
	}, &page)
	if err != nil {
		return Page{}, err
	}
	return page, nil
}

// UpdatePageProperties patches properties on an existing page.
func (c *Client) UpdatePageProperties(ctx context.Context, pageID string, props Properties) error {
	return c.doJSON(ctx, OpUpdatePage, http.MethodPatch, "/v1/pages/"+url.PathEscape(pageID), updatePageRequest{Properties: props}, nil)
}

// AppendChildren appends blocks to a page or block.
func (c *Client) AppendChildren(ctx context.Context, blockID string, children []Block) error {
	return c.doJSON(ctx, OpAppendChildren, http.MethodPatch, "/v1/blocks/"+url.PathEscape(blockID)+"/children", appendChildrenRequest{Children: children}, nil)
}

// CreateFileUpload requests an upload slot.
func (c *Client) CreateFileUpload(ctx context.Context, filename, contentType string) (FileUpload, error) {
	var upload FileUpload
	err := c.doJSON(ctx, OpCreateFileUpload, http.MethodPost, "/v1/file_uploads", createFileUploadRequest{
		Filename:    filename,
		ContentType: contentType,
	}, &upload)
	if err != nil {
		return FileUpload{}, err
	}
	if upload.ID == "" || upload.UploadURL == "" {
		return FileUpload{}, &APIError{Op: OpCreateFileUpload, Status: http.StatusOK, Kind: KindValidation, Message: "upload slot missing id or upload_url"}
	}
	return upload, nil
}

// SendFileUpload transmits the file bytes to an upload slot. Notion-hosted
// slots (URL containing /send) take an authenticated multipart POST; anything
// else is treated as a presigned URL and receives a raw PUT.
func (c *Client) SendFileUpload(ctx context.Context, upload FileUpload, filename, contentType string, data []byte) error {
	target := upload.UploadURL
	if strings.HasPrefix(target, "/") {
		target = c.baseURL + target
	}

	if strings.Contains(target, "/send") {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			return fmt.Errorf("create multipart part: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return fmt.Errorf("write multipart part: %w", err)
		}
		if err := mw.Close(); err != nil {
			return fmt.Errorf("close multipart writer: %w", err)
		}
		body := buf.Bytes()
		return c.do(ctx, OpSendFileUpload, c.authed, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", mw.FormDataContentType())
			req.Header.Set("Notion-Version", c.apiVersion)
			return req, nil
		}, nil)
	}

	return c.do(ctx, OpSendFileUpload, c.raw, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.ContentLength = int64(len(data))
		return req, nil
	}, nil)
}

// RetrieveDatabase fetches a database and its property schema.
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (Database, error) {
	var db Database
	if err := c.doJSON(ctx, OpRetrieveDatabase, http.MethodGet, "/v1/databases/"+url.PathEscape(databaseID), nil, &db); err != nil {
		return Database{}, err
	}
	return db, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = jsonx.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
	}
	target := c.baseURL + path
	return c.do(ctx, op, c.authed, func() (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Notion-Version", c.apiVersion)
		return req, nil
	}, out)
}

// idempotentOps may be repeated after a transport failure or a 5xx without
// creating duplicate content. Other operations are retried only on 429.
var idempotentOps = map[string]bool{
	OpRetrieveDatabase: true,
	OpUpdatePage:       true,
}

// do runs the request built by build. Rate limited responses are retried up
// to maxRetries times; transport failures and 5xx responses only for
// idempotent operations.
func (c *Client) do(ctx context.Context, op string, hc *http.Client, build func() (*http.Request, error), out any) error {
	idempotent := idempotentOps[op]
	for attempt := 0; ; attempt++ {
		req, err := build()
		if err != nil {
			return fmt.Errorf("build %s request: %w", op, err)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := hc.Do(req)
		if err != nil {
			c.observe(op, 0)
			if idempotent && ctx.Err() == nil && attempt < c.maxRetries {
				if waitErr := pause.For(ctx, c.retryDelay("")); waitErr != nil {
					return &APIError{Op: op, Kind: KindTransport, Err: waitErr}
				}
				continue
			}
			return &APIError{Op: op, Kind: KindTransport, Err: err}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		c.observe(op, resp.StatusCode)
		if readErr != nil {
			return &APIError{Op: op, Status: resp.StatusCode, Kind: KindTransport, Err: readErr}
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
				return nil
			}
			if err := jsonx.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode %s response: %w", op, err)
			}
			return nil
		}

		if retryable(resp.StatusCode, idempotent) && attempt < c.maxRetries {
			if waitErr := pause.For(ctx, c.retryDelay(resp.Header.Get("Retry-After"))); waitErr != nil {
				return &APIError{Op: op, Kind: KindTransport, Err: waitErr}
			}
			continue
		}

		return decodeError(op, resp.StatusCode, respBody)
	}
}

func (c *Client) observe(op string, status int) {
	if c.observer != nil {
		c.observer(op, status)
	}
}

func decodeError(op string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Op:      op,
		Status:  status,
		Kind:    kindForStatus(status),
		Message: strings.TrimSpace(string(body)),
	}
	var parsed errorBody
	if jsonx.Unmarshal(body, &parsed) == nil {
		apiErr.Code = parsed.Code
		if strings.TrimSpace(parsed.Message) != "" {
			apiErr.Message = parsed.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// retryDelay honors Retry-After up to maxDelay and otherwise waits the
// fixed base delay.
func (c *Client) retryDelay(retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		return min(retryAfter, c.maxDelay)
	}
	return c.baseDelay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
