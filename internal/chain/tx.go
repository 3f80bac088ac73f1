package chain

import (
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// #region tx

// LegacyTx is a pre-EIP-1559 transaction, replay-protected with EIP-155.
type LegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       Address
	Value    *big.Int
	Data     []byte
}

func (tx LegacyTx) fields() [][]byte {
	return [][]byte{
		rlpUint(tx.Nonce),
		rlpBig(tx.GasPrice),
		rlpUint(tx.Gas),
		rlpBytes(tx.To[:]),
		rlpBig(tx.Value),
		rlpBytes(tx.Data),
	}
}

// SigningHash is keccak(rlp([nonce, gasPrice, gas, to, value, data, chainID, 0, 0])).
func (tx LegacyTx) SigningHash(chainID *big.Int) []byte {
	items := append(tx.fields(), rlpBig(chainID), rlpUint(0), rlpUint(0))
	return Keccak256(rlpList(items...))
}

// Sign returns the raw signed transaction and its hash.
func (tx LegacyTx) Sign(key *secp256k1.PrivateKey, chainID *big.Int) (raw []byte, hash []byte, err error) {
	sig := ecdsa.SignCompact(key, tx.SigningHash(chainID), false)
	if len(sig) != 65 {
		return nil, nil, fmt.Errorf("sign tx: unexpected signature length %d", len(sig))
	}
	recID := int64(sig[0] - 27)
	v := new(big.Int).Mul(chainID, big.NewInt(2))
	v.Add(v, big.NewInt(35+recID))
	r := new(big.Int).SetBytes(sig[1:33])
	s := new(big.Int).SetBytes(sig[33:65])

	items := append(tx.fields(), rlpBig(v), rlpBig(r), rlpBig(s))
	raw = rlpList(items...)
	return raw, Keccak256(raw), nil
}

// #endregion tx
