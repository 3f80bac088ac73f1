package farcaster

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Publisher signs casts for one account and hands them to a Submitter.
type Publisher struct {
	fid    uint64
	signer *Signer
	sub    Submitter
	now    func() time.Time
}

// NewPublisher creates a Publisher for fid.
func NewPublisher(fid uint64, signer *Signer, sub Submitter) *Publisher {
	return &Publisher{fid: fid, signer: signer, sub: sub, now: time.Now}
}

// Publish builds, signs and submits a cast. The returned hash is known before
// submission, but is only returned when the hub accepts the message.
func (p *Publisher) Publish(ctx context.Context, text string, parent *CastID) (string, error) {
	msg, err := BuildCastAdd(p.signer, p.fid, text, parent, p.now())
	if err != nil {
		return "", fmt.Errorf("build cast: %w", err)
	}
	log.Printf("[CAST] hash %s (%d bytes)", msg.HexHash(), len(msg.Bytes))
	if err := p.sub.Submit(ctx, msg.Bytes); err != nil {
		return "", err
	}
	return msg.HexHash(), nil
}
