package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/namikmesic/chatstream/internal/chat"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 4 * 1024

// Client opens chat streams against the backend over HTTP.
type Client struct {
	targetURL string
	header    http.Header
	http      *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has no timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Add(key, value) }
}

func New(baseURL, path string, opts ...Option) (*Client, error) {
	target, err := buildTargetURL(baseURL, path)
	if err != nil {
		return nil, err
	}
	c := &Client{
		targetURL: target,
		header:    make(http.Header),
		http: &http.Client{
			// No timeout, streaming responses can be long-lived
			Timeout: 0,
			// Don't follow redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Transport: &http.Transport{
				Proxy:              http.ProxyFromEnvironment,
				DisableCompression: true,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Open posts req and returns the event-stream body. The transfer is aborted
// when ctx is cancelled.
func (c *Client) Open(ctx context.Context, req chat.Request) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.targetURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header = requestHeaders(c.header)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error().Err(err).Str("url", c.targetURL).Msg("chat request failed")
		return nil, &chat.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &chat.TransportError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, &chat.TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response has no body"),
		}
	}
	if !isStreamingResponse(resp) {
		log.Warn().
			Str("content_type", resp.Header.Get("Content-Type")).
			Msg("chat response is not an event stream, decoding anyway")
	}

	log.Debug().
		Str("url", c.targetURL).
		Int("status", resp.StatusCode).
		Int("messages", len(req.Messages)).
		Msg("chat stream opened")
	return resp.Body, nil
}

func isStreamingResponse(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	return strings.Contains(ct, "text/event-stream")
}
