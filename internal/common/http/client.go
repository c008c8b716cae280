// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"gopkg.in/resty.v1"
)

// Client is a thin resty wrapper for calls between the frontend and the
// scoring API.
type Client struct {
	rc *resty.Client
}

// NewClient builds a client. A zero timeout leaves requests bounded only by
// their context.
func NewClient(timeout time.Duration) *Client {
	cl := http.Client{Timeout: timeout}
	return &Client{rc: resty.NewWithClient(&cl)}
}

// FilePart is one file field of a multipart body.
type FilePart struct {
	Field    string
	FileName string
	Content  []byte
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// PostMultipart sends fields and files as one multipart/form-data POST. The
// request carries no custom headers and is never retried.
func (c *Client) PostMultipart(ctx context.Context, target string, fields url.Values, files []FilePart) (*Response, error) {
	req := c.rc.R().SetContext(ctx)
	if len(fields) > 0 {
		req.SetMultiValueFormData(fields)
	}
	for _, f := range files {
		req.SetFileReader(f.Field, f.FileName, bytes.NewReader(f.Content))
	}
	if len(files) == 0 {
		// resty only switches to multipart when a file is attached.
		req.SetMultipartFields()
	}

	resp, err := req.Post(target)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

// Get fetches target and returns the raw response.
func (c *Client) Get(ctx context.Context, target string) (*Response, error) {
	resp, err := c.rc.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}
