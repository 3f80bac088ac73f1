package reward

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/big"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielpatrickdp/buildstreak-agent/internal/chain"
	"github.com/danielpatrickdp/buildstreak-agent/internal/farcaster"
	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
	"github.com/danielpatrickdp/buildstreak-agent/internal/telemetry"
)

// #region interfaces

// Chain is the token client the distributor pays through.
type Chain interface {
	LatestBlock(ctx context.Context) (chain.Block, error)
	Decimals(ctx context.Context) (uint8, error)
	Balance(ctx context.Context) (*big.Int, error)
	Transfer(ctx context.Context, to string, amount *big.Int) (string, error)
	WaitMined(ctx context.Context, hash string) error
}

// Messenger writes the celebration text for a tip.
type Messenger interface {
	TipMessage(ctx context.Context, username, amount, symbol string) string
}

// #endregion interfaces

// #region types

// Status is the terminal state of one run.
type Status string

const (
	StatusSkipped Status = "skipped"
	StatusAborted Status = "aborted"
	StatusDryRun  Status = "dry_run"
	StatusTipped  Status = "tipped"
	StatusPartial Status = "partial"
)

// Config holds the distributor knobs.
type Config struct {
	AgentFID      uint64
	Amount        string
	Symbol        string
	MaxWinners    int
	MinAge        time.Duration
	ExplorerTxURL string
	DryRun        bool
	EagerPersist  bool
}

// Input names the post whose replies are tipped.
type Input struct {
	PostHash string
	PostedAt time.Time
}

// Outcome reports what a run did. Record is set whenever a ledger entry was
// written.
type Outcome struct {
	Status    Status
	Reason    string
	Eligible  int
	Selection *Selection
	Record    *state.TipRecord
}

// #endregion types

// #region distributor

// Distributor runs one tip round.
type Distributor struct {
	cfg    Config
	chain  Chain
	reader farcaster.Reader
	poster farcaster.Poster
	msg    Messenger
	store  state.Store
	now    func() time.Time
}

// New creates a Distributor. poster may be nil for dry runs.
func New(cfg Config, c Chain, reader farcaster.Reader, poster farcaster.Poster, msg Messenger, store state.Store) *Distributor {
	if cfg.MaxWinners <= 0 {
		cfg.MaxWinners = 1
	}
	return &Distributor{cfg: cfg, chain: c, reader: reader, poster: poster, msg: msg, store: store, now: time.Now}
}

func skip(status Status, format string, args ...any) Outcome {
	reason := fmt.Sprintf(format, args...)
	log.Printf("[TIP] %s: %s", status, reason)
	return Outcome{Status: status, Reason: reason}
}

// Run checks the gates in order (age, ledger, eligibility, balance) and pays
// the selected winners. Provider failures before the first transfer abort
// the round without a ledger entry; once money has moved the ledger is
// always written. Only state store errors are returned.
func (d *Distributor) Run(ctx context.Context, in Input) (out Outcome, err error) {
	ctx, span := telemetry.Start(ctx, "reward.run", attribute.String("tip.post", in.PostHash))
	defer func() {
		span.SetAttributes(attribute.String("tip.status", string(out.Status)))
		telemetry.End(span, err)
	}()

	if in.PostHash == "" || in.PostedAt.IsZero() {
		return skip(StatusSkipped, "no published post recorded"), nil
	}
	if age := d.now().Sub(in.PostedAt); age < d.cfg.MinAge {
		return skip(StatusSkipped, "post too recent (%d min, need %d)",
			int(math.Round(age.Minutes())), int(d.cfg.MinAge.Minutes())), nil
	}

	ledger, err := state.LoadTips(ctx, d.store)
	if err != nil {
		return Outcome{}, err
	}
	if _, done := ledger.Tipped[in.PostHash]; done {
		return skip(StatusSkipped, "already tipped for %s", in.PostHash), nil
	}

	root, err := d.reader.FetchConversation(ctx, in.PostHash, 2)
	if err != nil {
		return skip(StatusSkipped, "conversation unavailable: %v", err), nil
	}
	pool := Eligible(root, d.cfg.AgentFID)
	if len(pool) == 0 {
		return skip(StatusSkipped, "no eligible replies (no resolvable wallets)"), nil
	}
	log.Printf("[TIP] %d eligible replies", len(pool))
	for _, e := range pool {
		log.Printf("[TIP]   @%s -> %s", e.Username, e.Address)
	}

	block, err := d.chain.LatestBlock(ctx)
	if err != nil {
		return skip(StatusAborted, "latest block: %v", err), nil
	}
	sel := Select(block.Hash, in.PostHash, in.PostedAt, pool, d.cfg.MaxWinners)
	log.Printf("[TIP] selection seed: %s", sel.Seed)
	for _, w := range sel.Winners {
		log.Printf("[TIP] winner @%s -> %s", w.Username, w.Address)
	}

	decimals, err := d.chain.Decimals(ctx)
	if err != nil {
		return skip(StatusAborted, "token decimals: %v", err), nil
	}
	amount, err := chain.ParseUnits(d.cfg.Amount, decimals)
	if err != nil {
		return skip(StatusAborted, "tip amount: %v", err), nil
	}
	total := new(big.Int).Mul(amount, big.NewInt(int64(len(sel.Winners))))
	balance, err := d.chain.Balance(ctx)
	if err != nil {
		return skip(StatusAborted, "token balance: %v", err), nil
	}
	log.Printf("[TIP] tip %s %s | needed %s | balance %s", d.cfg.Amount, d.cfg.Symbol,
		chain.FormatUnits(total, decimals), chain.FormatUnits(balance, decimals))
	if balance.Cmp(total) < 0 {
		o := skip(StatusAborted, "insufficient %s balance", d.cfg.Symbol)
		o.Eligible, o.Selection = len(pool), &sel
		return o, nil
	}

	if d.cfg.DryRun {
		o := skip(StatusDryRun, "would tip %d winner(s) and reply with tx links", len(sel.Winners))
		o.Eligible, o.Selection = len(pool), &sel
		return o, nil
	}

	rec := state.TipRecord{
		At:        d.now().UTC(),
		Block:     block.Number,
		BlockHash: block.Hash,
		Seed:      sel.Seed,
		SeedHash:  sel.SeedHash,
		TipAmount: d.cfg.Amount,
	}
	for _, w := range sel.Winners {
		rec.Winners = append(rec.Winners, state.Winner{FID: w.FID, Username: w.Username, Address: w.Address})
	}

	status := StatusTipped
	for _, w := range sel.Winners {
		tx, ok := d.pay(ctx, w, amount)
		if tx != nil {
			rec.Txs = append(rec.Txs, *tx)
		}
		if !ok {
			status = StatusPartial
			rec.Partial = true
			break
		}
		if d.cfg.EagerPersist {
			if err := d.save(ctx, ledger, in.PostHash, rec); err != nil {
				return Outcome{}, err
			}
		}
	}

	if len(rec.Txs) == 0 {
		return skip(StatusAborted, "first transfer failed, nothing sent"), nil
	}
	if err := d.save(ctx, ledger, in.PostHash, rec); err != nil {
		return Outcome{}, err
	}
	log.Printf("[TIP] %s: %d transfer(s) recorded for %s", status, len(rec.Txs), in.PostHash)
	return Outcome{Status: status, Eligible: len(pool), Selection: &sel, Record: &rec}, nil
}

// pay transfers to one winner, waits for the receipt and posts the
// celebration reply. ok is false when the round must stop; tx is non-nil
// whenever a transfer was broadcast.
func (d *Distributor) pay(ctx context.Context, w Entry, amount *big.Int) (tx *state.TipTx, ok bool) {
	log.Printf("[TIP] sending %s %s to @%s (%s)", d.cfg.Amount, d.cfg.Symbol, w.Username, w.Address)
	hash, err := d.chain.Transfer(ctx, w.Address, amount)
	if err != nil {
		log.Printf("[TIP] transfer to @%s failed: %v", w.Username, err)
		return nil, false
	}
	tx = &state.TipTx{Address: w.Address, Username: w.Username, TxHash: hash}
	log.Printf("[TIP]   tx %s", hash)

	if err := d.chain.WaitMined(ctx, hash); err != nil {
		log.Printf("[TIP] confirmation of %s failed: %v", hash, err)
		tx.Unconfirmed = true
		return tx, false
	}

	text := d.msg.TipMessage(ctx, w.Username, d.cfg.Amount, d.cfg.Symbol) + "\n\n" + d.cfg.ExplorerTxURL + hash
	if d.poster == nil {
		return tx, true
	}
	replyHash, err := d.poster.Publish(ctx, text, &farcaster.CastID{FID: w.FID, Hash: w.Hash})
	if err != nil {
		log.Printf("[TIP] tip reply to @%s failed: %v", w.Username, err)
		return tx, true
	}
	tx.ReplyHash = replyHash
	log.Printf("[TIP]   replied %s", replyHash)
	return tx, true
}

func (d *Distributor) save(ctx context.Context, ledger state.TipLedger, post string, rec state.TipRecord) error {
	ledger.Tipped[post] = rec
	if err := state.SaveTips(ctx, d.store, ledger); err != nil {
		return fmt.Errorf("save tip ledger: %w", err)
	}
	return nil
}

// #endregion distributor
