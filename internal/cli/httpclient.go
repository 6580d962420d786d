package cli

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const userAgent = "vicinae-store-cli"

// HTTPError represents an error response from the server with a status code
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// HTTPClient represents a client for making HTTP requests to the store server
type HTTPClient struct {
	config     *Config
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client using the provided configuration
func NewHTTPClient(config *Config) *HTTPClient {
	return &HTTPClient{
		config:     config,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// RequestOptions contains options for making HTTP requests
type RequestOptions struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Body        []byte
	ContentType string
	// Admin attaches the configured API key.
	Admin bool
}

// Response is a successful server reply.
type Response struct {
	Body     []byte
	Location string
	Header   http.Header
}

// DoRequest makes an HTTP request with the given options
func (c *HTTPClient) DoRequest(opts RequestOptions) (*Response, error) {
	// Build the URL with query parameters
	u, err := url.Parse(c.config.GetServerURL())
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	u.Path = path.Join(u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(opts.Method, u.String(), bytes.NewReader(opts.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("User-Agent", userAgent)
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.Admin {
		if c.config.APIKey == "" {
			return nil, fmt.Errorf("api_key is not configured, run \"store-cli config create --api-key\" first")
		}
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseServerError(resp.StatusCode, body)
	}

	return &Response{Body: body, Location: resp.Header.Get("Location"), Header: resp.Header}, nil
}

// parseServerError reads the {"result":0,"error":...} body the server sends on failure.
func parseServerError(status int, body []byte) error {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error").String(); msg != "" {
			return &HTTPError{
				StatusCode: status,
				Code:       gjson.GetBytes(body, "code").String(),
				Message:    msg,
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &HTTPError{StatusCode: status, Message: msg}
}

func (c *HTTPClient) Get(p string, queryParams map[string]string) ([]byte, error) {
	rsp, err := c.DoRequest(RequestOptions{
		Method:      http.MethodGet,
		Path:        p,
		QueryParams: queryParams,
	})
	if err != nil {
		return nil, err
	}
	return rsp.Body, nil
}

// Admin sends a body-less admin request.
func (c *HTTPClient) Admin(method, p string) ([]byte, error) {
	rsp, err := c.DoRequest(RequestOptions{
		Method: method,
		Path:   p,
		Admin:  true,
	})
	if err != nil {
		return nil, err
	}
	return rsp.Body, nil
}

// Upload posts data as the multipart field "file".
func (c *HTTPClient) Upload(p, filename string, data []byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	rsp, err := c.DoRequest(RequestOptions{
		Method:      http.MethodPost,
		Path:        p,
		Body:        body.Bytes(),
		ContentType: mw.FormDataContentType(),
		Admin:       true,
	})
	if err != nil {
		return nil, err
	}
	return rsp.Body, nil
}

// Download fetches a file and returns it with the filename the server suggested.
func (c *HTTPClient) Download(p string) ([]byte, string, error) {
	rsp, err := c.DoRequest(RequestOptions{
		Method: http.MethodGet,
		Path:   p,
	})
	if err != nil {
		return nil, "", err
	}
	filename := ""
	if _, params, err := mime.ParseMediaType(rsp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	return rsp.Body, filename, nil
}
