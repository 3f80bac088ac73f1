// Package reward picks tip winners from a post's replies with a publicly
// reproducible draw and pays them through the token client.
package reward

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"time"

	"github.com/danielpatrickdp/buildstreak-agent/internal/chain"
	"github.com/danielpatrickdp/buildstreak-agent/internal/farcaster"
)

// #region eligibility

// Entry is one eligible reply and the wallet its author resolves to.
type Entry struct {
	FID      uint64
	Username string
	Hash     string
	Address  string
	Text     string
}

// ResolveAddress prefers the primary verified address, then the first
// verified address, then the custody address.
func ResolveAddress(a farcaster.Author) string {
	if p := a.VerifiedAddresses.Primary.ETHAddress; p != "" {
		return p
	}
	for _, v := range a.VerifiedAddresses.ETHAddresses {
		if v != "" {
			return v
		}
	}
	return a.CustodyAddress
}

// Eligible flattens the conversation in preorder, root included, and keeps
// casts whose author is not the agent and resolves to an address. Each
// author enters the pool once, with their earliest cast.
func Eligible(root *farcaster.Cast, agentFID uint64) []Entry {
	if root == nil {
		return nil
	}
	var out []Entry
	seen := make(map[uint64]bool)
	stack := []*farcaster.Cast{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for i := len(n.DirectReplies) - 1; i >= 0; i-- {
			stack = append(stack, &n.DirectReplies[i])
		}

		if n.Author.FID == agentFID || seen[n.Author.FID] {
			continue
		}
		addr := ResolveAddress(n.Author)
		if addr == "" {
			continue
		}
		seen[n.Author.FID] = true
		username := n.Author.Username
		if username == "" {
			username = "fid:" + strconv.FormatUint(n.Author.FID, 10)
		}
		out = append(out, Entry{FID: n.Author.FID, Username: username, Hash: n.Hash, Address: addr, Text: n.Text})
	}
	return out
}

// #endregion eligibility

// #region selection

// Selection is a finished draw with everything needed to audit it.
type Selection struct {
	Seed     string
	SeedHash string
	Winners  []Entry
}

// SeedTimestamp renders a post time the way it appears in the seed string:
// UTC with millisecond precision.
func SeedTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// Select draws up to maxWinners entries without replacement. The first index
// is keccak256(seed) mod N; after the k-th winner the next index is
// keccak256(seed + k) mod the remaining pool size.
func Select(blockHash, postHash string, postedAt time.Time, pool []Entry, maxWinners int) Selection {
	seed := blockHash + ":" + postHash + ":" + SeedTimestamp(postedAt)
	sum := chain.Keccak256([]byte(seed))
	sel := Selection{Seed: seed, SeedHash: "0x" + hex.EncodeToString(sum)}
	if len(pool) == 0 {
		return sel
	}

	remaining := append([]Entry(nil), pool...)
	idx := mod(sum, len(remaining))
	for len(sel.Winners) < maxWinners && len(remaining) > 0 {
		sel.Winners = append(sel.Winners, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		if len(remaining) == 0 {
			break
		}
		next := chain.Keccak256([]byte(seed + strconv.Itoa(len(sel.Winners))))
		idx = mod(next, len(remaining))
	}
	return sel
}

func mod(hash []byte, n int) int {
	v := new(big.Int).SetBytes(hash)
	return int(v.Mod(v, big.NewInt(int64(n))).Int64())
}

// #endregion selection
