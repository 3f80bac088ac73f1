package chain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

// #region keccak

// Keccak256 is the legacy Keccak hash Ethereum uses everywhere.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// #endregion keccak

// #region address

// Address is a 20-byte account address.
type Address [20]byte

// ParseAddress accepts 40 hex digits with an optional 0x prefix. Checksum
// casing is not enforced.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(raw) != 40 {
		return a, fmt.Errorf("address %q: want 40 hex digits", s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, fmt.Errorf("address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// Hex returns the EIP-55 checksummed form.
func (a Address) Hex() string {
	lower := hex.EncodeToString(a[:])
	sum := Keccak256([]byte(lower))
	out := []byte(lower)
	for i, c := range out {
		if c < 'a' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

func (a Address) String() string { return a.Hex() }

// AddressOf derives the account address of a private key.
func AddressOf(key *secp256k1.PrivateKey) Address {
	pub := key.PubKey().SerializeUncompressed()
	var a Address
	copy(a[:], Keccak256(pub[1:])[12:])
	return a
}

// ParseKey reads a 32-byte hex private key.
func ParseKey(s string) (*secp256k1.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key: want 32 bytes, got %d", len(raw))
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}

// #endregion address
