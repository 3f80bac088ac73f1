package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"go.opentelemetry.io/otel/attribute"

	"github.com/danielpatrickdp/buildstreak-agent/internal/telemetry"
)

// #region client

// ErrNotFound is returned when the node has no record yet, such as a
// receipt for a pending transaction.
var ErrNotFound = errors.New("not found")

// RPC is a minimal Ethereum JSON-RPC client over HTTP.
type RPC struct {
	url    string
	client *http.Client
	nextID atomic.Int64
}

// NewRPC creates a client for url.
func NewRPC(url string, client *http.Client) *RPC {
	if client == nil {
		client = http.DefaultClient
	}
	return &RPC{url: url, client: client}
}

// Call invokes method and decodes the result into out. A JSON null result
// yields ErrNotFound.
func (c *RPC) Call(ctx context.Context, out any, method string, params ...any) (err error) {
	ctx, span := telemetry.Start(ctx, "chain.rpc", attribute.String("rpc.method", method))
	defer func() { telemetry.End(span, err) }()

	if params == nil {
		params = []any{}
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%s: encode params: %w", method, err)
	}
	id, err := jsonrpc.MakeID(c.nextID.Add(1))
	if err != nil {
		return fmt.Errorf("%s: make id: %w", method, err)
	}
	body, err := jsonrpc.EncodeMessage(&jsonrpc.Request{ID: id, Method: method, Params: rawParams})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, bytes.TrimSpace(data))
	}

	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	r, ok := msg.(*jsonrpc.Response)
	if !ok {
		return fmt.Errorf("%s: unexpected message %T", method, msg)
	}
	if r.Error != nil {
		return fmt.Errorf("%s: %w", method, r.Error)
	}
	if len(r.Result) == 0 || string(r.Result) == "null" {
		return fmt.Errorf("%s: %w", method, ErrNotFound)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// #endregion client

// #region quantities

func hexBig(v *big.Int) string {
	return "0x" + v.Text(16)
}

func hexUint(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

func parseBig(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("bad quantity %q", s)
	}
	return v, nil
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad quantity %q: %w", s, err)
	}
	return v, nil
}

// #endregion quantities

// #region methods

// Block identifies a mined block.
type Block struct {
	Number uint64
	Hash   string
}

// LatestBlock returns the chain head.
func (c *RPC) LatestBlock(ctx context.Context) (Block, error) {
	var raw struct {
		Number string `json:"number"`
		Hash   string `json:"hash"`
	}
	if err := c.Call(ctx, &raw, "eth_getBlockByNumber", "latest", false); err != nil {
		return Block{}, err
	}
	n, err := parseUint(raw.Number)
	if err != nil {
		return Block{}, fmt.Errorf("block number: %w", err)
	}
	return Block{Number: n, Hash: raw.Hash}, nil
}

func (c *RPC) quantity(ctx context.Context, method string, params ...any) (*big.Int, error) {
	var s string
	if err := c.Call(ctx, &s, method, params...); err != nil {
		return nil, err
	}
	return parseBig(s)
}

// ChainID returns the network's EIP-155 chain id.
func (c *RPC) ChainID(ctx context.Context) (*big.Int, error) {
	return c.quantity(ctx, "eth_chainId")
}

// GasPrice returns the node's suggested legacy gas price.
func (c *RPC) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.quantity(ctx, "eth_gasPrice")
}

// PendingNonce returns the next nonce for addr including pending transactions.
func (c *RPC) PendingNonce(ctx context.Context, addr Address) (uint64, error) {
	v, err := c.quantity(ctx, "eth_getTransactionCount", addr.Hex(), "pending")
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

type callMsg struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Data string `json:"data"`
}

// EstimateGas estimates gas for a call from from to to with data.
func (c *RPC) EstimateGas(ctx context.Context, from, to Address, data []byte) (uint64, error) {
	v, err := c.quantity(ctx, "eth_estimateGas", callMsg{From: from.Hex(), To: to.Hex(), Data: hexBytes(data)})
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// CallContract runs a read-only call against the latest block.
func (c *RPC) CallContract(ctx context.Context, to Address, data []byte) ([]byte, error) {
	var s string
	if err := c.Call(ctx, &s, "eth_call", callMsg{To: to.Hex(), Data: hexBytes(data)}, "latest"); err != nil {
		return nil, err
	}
	return decodeHexBytes(s)
}

// SendRawTransaction broadcasts a signed transaction and returns its hash.
func (c *RPC) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	var hash string
	if err := c.Call(ctx, &hash, "eth_sendRawTransaction", hexBytes(raw)); err != nil {
		return "", err
	}
	return hash, nil
}

// Receipt is the part of a transaction receipt the client inspects.
type Receipt struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
}

// TransactionReceipt returns ErrNotFound while the transaction is pending.
func (c *RPC) TransactionReceipt(ctx context.Context, hash string) (Receipt, error) {
	var r Receipt
	err := c.Call(ctx, &r, "eth_getTransactionReceipt", hash)
	return r, err
}

// #endregion methods
