package farcaster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielpatrickdp/buildstreak-agent/internal/telemetry"
)

// #region client

// Neynar reads feeds and conversations from the Neynar v2 API and submits
// messages to its hub HTTP endpoint.
type Neynar struct {
	apiURL string
	hubURL string
	key    string
	client *http.Client
}

// NewNeynar creates a client. hubURL may be empty when submission goes
// through gRPC instead.
func NewNeynar(apiURL, hubURL, key string, client *http.Client) *Neynar {
	if client == nil {
		client = http.DefaultClient
	}
	return &Neynar{apiURL: apiURL, hubURL: hubURL, key: key, client: client}
}

// #endregion client

// #region reads

// FetchRecentPosts returns the account's latest top-level casts, newest first.
func (n *Neynar) FetchRecentPosts(ctx context.Context, fid uint64, limit int) ([]Cast, error) {
	q := url.Values{}
	q.Set("fid", strconv.FormatUint(fid, 10))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("include_replies", "false")

	var body struct {
		Casts []Cast `json:"casts"`
	}
	if err := n.get(ctx, "/v2/farcaster/feed/user/casts", q, &body); err != nil {
		return nil, fmt.Errorf("fetch recent posts: %w", err)
	}
	return body.Casts, nil
}

// FetchConversation returns the root cast with replies nested depth levels.
func (n *Neynar) FetchConversation(ctx context.Context, hash string, depth int) (*Cast, error) {
	q := url.Values{}
	q.Set("identifier", hash)
	q.Set("type", "hash")
	q.Set("reply_depth", strconv.Itoa(depth))
	q.Set("include_chronological_parent_casts", "false")

	var body struct {
		Conversation struct {
			Cast *Cast `json:"cast"`
		} `json:"conversation"`
	}
	if err := n.get(ctx, "/v2/farcaster/cast/conversation", q, &body); err != nil {
		return nil, fmt.Errorf("fetch conversation %s: %w", hash, err)
	}
	if body.Conversation.Cast == nil {
		return nil, fmt.Errorf("fetch conversation %s: empty response", hash)
	}
	return body.Conversation.Cast, nil
}

func (n *Neynar) get(ctx context.Context, path string, q url.Values, out any) (err error) {
	ctx, span := telemetry.Start(ctx, "farcaster.get", attribute.String("http.route", path))
	defer func() { telemetry.End(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.apiURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", n.key)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// #endregion reads

// #region submit

// Submit posts an encoded Message to the hub's /v1/submitMessage endpoint.
func (n *Neynar) Submit(ctx context.Context, msg []byte) (err error) {
	ctx, span := telemetry.Start(ctx, "farcaster.submit", attribute.Int("message.bytes", len(msg)))
	defer func() { telemetry.End(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.hubURL+"/v1/submitMessage", bytes.NewReader(msg))
	if err != nil {
		return fmt.Errorf("submit: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("x-api-key", n.key)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("submit: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// #endregion submit
