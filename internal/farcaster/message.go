package farcaster

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"lukechampine.com/blake3"
)

// #region constants

// farcasterEpoch is 2021-01-01T00:00:00Z; message timestamps count seconds from it.
const farcasterEpoch = 1609459200

const (
	messageTypeCastAdd   = 1
	networkMainnet       = 1
	hashSchemeBlake3     = 1
	signatureSchemeEd255 = 1

	hashLen     = 20
	maxTextSize = 320
)

var (
	ErrEmptyText   = errors.New("cast text is empty")
	ErrTextTooLong = errors.New("cast text exceeds 320 bytes")
	ErrParentHash  = errors.New("parent hash must be 20 bytes of hex")
)

// #endregion constants

// #region signer

// Signer holds the ed25519 app key that signs messages for the account.
type Signer struct {
	key ed25519.PrivateKey
}

// ParseSigner accepts a 32-byte seed or a 64-byte private key as hex, with
// or without a 0x prefix.
func ParseSigner(hexKey string) (*Signer, error) {
	raw, err := decodeHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("signer key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return &Signer{key: ed25519.NewKeyFromSeed(raw)}, nil
	case ed25519.PrivateKeySize:
		return &Signer{key: ed25519.PrivateKey(raw)}, nil
	default:
		return nil, fmt.Errorf("signer key: want %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// PublicKey returns the signer's public key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// #endregion signer

// #region build

// Message is an encoded, signed hub message.
type Message struct {
	Hash  []byte
	Bytes []byte
}

// HexHash returns the message hash in 0x-hex form.
func (m Message) HexHash() string {
	return "0x" + hex.EncodeToString(m.Hash)
}

// BuildCastAdd encodes and signs a CastAdd for fid. A nil parent makes a
// top-level cast.
func BuildCastAdd(s *Signer, fid uint64, text string, parent *CastID, at time.Time) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyText
	}
	if len(text) > maxTextSize {
		return Message{}, ErrTextTooLong
	}

	var body []byte
	if parent != nil {
		ph, err := decodeHex(parent.Hash)
		if err != nil || len(ph) != hashLen {
			return Message{}, ErrParentHash
		}
		var castID []byte
		castID = protowire.AppendTag(castID, 1, protowire.VarintType)
		castID = protowire.AppendVarint(castID, parent.FID)
		castID = protowire.AppendTag(castID, 2, protowire.BytesType)
		castID = protowire.AppendBytes(castID, ph)

		body = protowire.AppendTag(body, 3, protowire.BytesType)
		body = protowire.AppendBytes(body, castID)
	}
	body = protowire.AppendTag(body, 4, protowire.BytesType)
	body = protowire.AppendString(body, text)

	ts := at.Unix() - farcasterEpoch
	if ts < 0 {
		ts = 0
	}

	var data []byte
	data = protowire.AppendTag(data, 1, protowire.VarintType)
	data = protowire.AppendVarint(data, messageTypeCastAdd)
	data = protowire.AppendTag(data, 2, protowire.VarintType)
	data = protowire.AppendVarint(data, fid)
	data = protowire.AppendTag(data, 3, protowire.VarintType)
	data = protowire.AppendVarint(data, uint64(ts))
	data = protowire.AppendTag(data, 4, protowire.VarintType)
	data = protowire.AppendVarint(data, networkMainnet)
	data = protowire.AppendTag(data, 5, protowire.BytesType)
	data = protowire.AppendBytes(data, body)

	h := blake3.New(hashLen, nil)
	h.Write(data)
	hash := h.Sum(nil)
	sig := ed25519.Sign(s.key, hash)

	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.BytesType)
	msg = protowire.AppendBytes(msg, data)
	msg = protowire.AppendTag(msg, 2, protowire.BytesType)
	msg = protowire.AppendBytes(msg, hash)
	msg = protowire.AppendTag(msg, 3, protowire.VarintType)
	msg = protowire.AppendVarint(msg, hashSchemeBlake3)
	msg = protowire.AppendTag(msg, 4, protowire.BytesType)
	msg = protowire.AppendBytes(msg, sig)
	msg = protowire.AppendTag(msg, 5, protowire.VarintType)
	msg = protowire.AppendVarint(msg, signatureSchemeEd255)
	msg = protowire.AppendTag(msg, 6, protowire.BytesType)
	msg = protowire.AppendBytes(msg, s.PublicKey())

	return Message{Hash: hash, Bytes: msg}, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	return hex.DecodeString(s)
}

// #endregion build
