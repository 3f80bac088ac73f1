// Package chain sends ERC-20 transfers on an EVM network: JSON-RPC, legacy
// EIP-155 signing and receipt polling.
package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/danielpatrickdp/buildstreak-agent/internal/config"
	"github.com/danielpatrickdp/buildstreak-agent/internal/retry"
)

// #region selectors
var (
	selDecimals  = []byte{0x31, 0x3c, 0xe5, 0x67} // decimals()
	selBalanceOf = []byte{0x70, 0xa0, 0x82, 0x31} // balanceOf(address)
	selTransfer  = []byte{0xa9, 0x05, 0x9c, 0xbb} // transfer(address,uint256)
)

// #endregion selectors

// ErrReverted is returned when a mined transaction has status 0.
var ErrReverted = errors.New("transaction reverted")

// #region token

// Token is one ERC-20 contract driven by a single hot wallet.
type Token struct {
	rpc      *RPC
	key      *secp256k1.PrivateKey
	from     Address
	contract Address
	poll     time.Duration
	timeout  time.Duration
	sleep    func(context.Context, time.Duration) error

	chainID *big.Int
}

// NewToken binds the wallet key to the token contract.
func NewToken(rpc *RPC, key *secp256k1.PrivateKey, contract Address, poll, timeout time.Duration) *Token {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &Token{
		rpc:      rpc,
		key:      key,
		from:     AddressOf(key),
		contract: contract,
		poll:     poll,
		timeout:  timeout,
		sleep:    retry.Sleep,
	}
}

// Open builds a Token from configuration.
func Open(cfg config.Chain, rpc *RPC) (*Token, error) {
	key, err := ParseKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	contract, err := ParseAddress(cfg.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("token address: %w", err)
	}
	return NewToken(rpc, key, contract, cfg.PollInterval, cfg.ConfirmTimeout), nil
}

// From returns the wallet address.
func (t *Token) From() Address { return t.from }

// LatestBlock returns the chain head.
func (t *Token) LatestBlock(ctx context.Context) (Block, error) {
	return t.rpc.LatestBlock(ctx)
}

// Decimals reads the token's decimals().
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.rpc.CallContract(ctx, t.contract, selDecimals)
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	if len(out) < 32 {
		return 0, fmt.Errorf("decimals: short result (%d bytes)", len(out))
	}
	return uint8(new(big.Int).SetBytes(out[:32]).Uint64()), nil
}

// Balance returns the wallet's token balance.
func (t *Token) Balance(ctx context.Context) (*big.Int, error) {
	out, err := t.rpc.CallContract(ctx, t.contract, append(selBalanceOf, word(t.from[:])...))
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("balanceOf: short result (%d bytes)", len(out))
	}
	return new(big.Int).SetBytes(out[:32]), nil
}

// Transfer signs and broadcasts transfer(to, amount) and returns the tx hash.
// The gas estimate gets a 20% margin.
func (t *Token) Transfer(ctx context.Context, to string, amount *big.Int) (string, error) {
	dst, err := ParseAddress(to)
	if err != nil {
		return "", err
	}
	if t.chainID == nil {
		id, err := t.rpc.ChainID(ctx)
		if err != nil {
			return "", fmt.Errorf("chain id: %w", err)
		}
		t.chainID = id
	}

	data := make([]byte, 0, 4+64)
	data = append(data, selTransfer...)
	data = append(data, word(dst[:])...)
	data = append(data, word(amount.Bytes())...)

	nonce, err := t.rpc.PendingNonce(ctx, t.from)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	price, err := t.rpc.GasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}
	gas, err := t.rpc.EstimateGas(ctx, t.from, t.contract, data)
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", err)
	}

	tx := LegacyTx{Nonce: nonce, GasPrice: price, Gas: gas * 12 / 10, To: t.contract, Value: new(big.Int), Data: data}
	raw, hash, err := tx.Sign(t.key, t.chainID)
	if err != nil {
		return "", err
	}
	sent, err := t.rpc.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	if want := hexBytes(hash); !strings.EqualFold(sent, want) {
		log.Printf("[CHAIN] node returned hash %s, computed %s", sent, want)
	}
	return sent, nil
}

// WaitMined polls for the receipt until it appears or the confirm timeout
// passes. A reverted transaction returns ErrReverted.
func (t *Token) WaitMined(ctx context.Context, hash string) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	for {
		r, err := t.rpc.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if r.Status != "0x1" {
				return fmt.Errorf("%s: %w", hash, ErrReverted)
			}
			return nil
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("receipt %s: %w", hash, err)
		}
		if err := t.sleep(ctx, t.poll); err != nil {
			return fmt.Errorf("wait %s: %w", hash, err)
		}
	}
}

// #endregion token

// #region abi

// word left-pads b to a 32-byte ABI word.
func word(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func hexBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func decodeHexBytes(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// #endregion abi
