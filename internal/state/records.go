package state

import "context"

// #region typed-helpers

// LoadCadence returns the cadence document, or a fresh one when absent.
func LoadCadence(ctx context.Context, s Store) (CadenceState, error) {
	var c CadenceState
	if _, err := s.Get(ctx, KeyCadence, &c); err != nil {
		return CadenceState{}, err
	}
	if c.PostsByDate == nil {
		c.PostsByDate = make(map[string]int)
	}
	return c, nil
}

// SaveCadence replaces the cadence document.
func SaveCadence(ctx context.Context, s Store, c CadenceState) error {
	return s.Put(ctx, KeyCadence, c)
}

// LoadDiscovery returns the discovery snapshot, zero when absent.
func LoadDiscovery(ctx context.Context, s Store) (DiscoverySnapshot, error) {
	var d DiscoverySnapshot
	if _, err := s.Get(ctx, KeyDiscovery, &d); err != nil {
		return DiscoverySnapshot{}, err
	}
	return d, nil
}

// SaveDiscovery replaces the discovery snapshot.
func SaveDiscovery(ctx context.Context, s Store, d DiscoverySnapshot) error {
	return s.Put(ctx, KeyDiscovery, d)
}

// LoadReplies returns the reply dedup document with its map initialised.
func LoadReplies(ctx context.Context, s Store) (ReplyDedupState, error) {
	var r ReplyDedupState
	if _, err := s.Get(ctx, KeyReplies, &r); err != nil {
		return ReplyDedupState{}, err
	}
	if r.Replied == nil {
		r.Replied = make(map[string]ReplyRecord)
	}
	return r, nil
}

// SaveReplies replaces the reply dedup document.
func SaveReplies(ctx context.Context, s Store, r ReplyDedupState) error {
	return s.Put(ctx, KeyReplies, r)
}

// LoadTips returns the tip ledger with its map initialised.
func LoadTips(ctx context.Context, s Store) (TipLedger, error) {
	var t TipLedger
	if _, err := s.Get(ctx, KeyTips, &t); err != nil {
		return TipLedger{}, err
	}
	if t.Tipped == nil {
		t.Tipped = make(map[string]TipRecord)
	}
	return t, nil
}

// SaveTips replaces the tip ledger.
func SaveTips(ctx context.Context, s Store, t TipLedger) error {
	return s.Put(ctx, KeyTips, t)
}

// #endregion typed-helpers
