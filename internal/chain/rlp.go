package chain

import "math/big"

// #region rlp

// rlpBytes encodes a byte string.
func rlpBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	return append(rlpHeader(0x80, len(b)), b...)
}

// rlpList wraps already-encoded items.
func rlpList(items ...[]byte) []byte {
	var payload []byte
	for _, it := range items {
		payload = append(payload, it...)
	}
	return append(rlpHeader(0xc0, len(payload)), payload...)
}

func rlpUint(v uint64) []byte {
	return rlpBytes(new(big.Int).SetUint64(v).Bytes())
}

// rlpBig encodes a non-negative integer with no leading zeros; zero is the
// empty string.
func rlpBig(v *big.Int) []byte {
	if v == nil {
		return rlpBytes(nil)
	}
	return rlpBytes(v.Bytes())
}

func rlpHeader(offset byte, n int) []byte {
	if n <= 55 {
		return []byte{offset + byte(n)}
	}
	size := new(big.Int).SetInt64(int64(n)).Bytes()
	return append([]byte{offset + 55 + byte(len(size))}, size...)
}

// #endregion rlp
