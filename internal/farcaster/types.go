// Package farcaster reads conversations through Neynar and publishes signed
// casts to a hub over HTTP or gRPC.
package farcaster

import (
	"context"
	"strconv"
	"time"
)

// #region types

// Cast is one post and, for conversation fetches, its nested replies.
type Cast struct {
	Hash          string    `json:"hash"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	Author        Author    `json:"author"`
	DirectReplies []Cast    `json:"direct_replies,omitempty"`
}

// Author is the public profile attached to a cast.
type Author struct {
	FID               uint64            `json:"fid"`
	Username          string            `json:"username"`
	DisplayName       string            `json:"display_name"`
	CustodyAddress    string            `json:"custody_address"`
	VerifiedAddresses VerifiedAddresses `json:"verified_addresses"`
}

// VerifiedAddresses lists the wallets an account has verified.
type VerifiedAddresses struct {
	ETHAddresses []string `json:"eth_addresses"`
	Primary      struct {
		ETHAddress string `json:"eth_address"`
	} `json:"primary"`
}

// Handle returns the username, falling back to the display name and then
// to "fid:N".
func (a Author) Handle() string {
	if a.Username != "" {
		return a.Username
	}
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return "fid:" + strconv.FormatUint(a.FID, 10)
}

// CastID addresses a cast by author and hash.
type CastID struct {
	FID  uint64
	Hash string
}

// #endregion types

// #region interfaces

// Reader fetches an account's recent posts and conversation trees.
type Reader interface {
	FetchRecentPosts(ctx context.Context, fid uint64, limit int) ([]Cast, error)
	FetchConversation(ctx context.Context, hash string, depth int) (*Cast, error)
}

// Poster publishes a cast, optionally as a reply to parent, and returns its
// hash in 0x-hex form.
type Poster interface {
	Publish(ctx context.Context, text string, parent *CastID) (string, error)
}

// Submitter delivers an encoded Message to a hub.
type Submitter interface {
	Submit(ctx context.Context, msg []byte) error
}

// #endregion interfaces
