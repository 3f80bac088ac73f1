package app

import (
	"log"
	"net/http"

	"github.com/danielpatrickdp/buildstreak-agent/internal/chain"
	"github.com/danielpatrickdp/buildstreak-agent/internal/compose"
	"github.com/danielpatrickdp/buildstreak-agent/internal/farcaster"
	"github.com/danielpatrickdp/buildstreak-agent/internal/llm"
	"github.com/danielpatrickdp/buildstreak-agent/internal/websearch"
)

// #region clients

// Composer selects the text provider once. Without any provider it returns
// a composer whose Compose always fails softly; flows that need text check
// HasGenerator.
func (r *Runtime) Composer() *compose.Composer {
	gen, name, err := llm.New(r.Config.LLM, &http.Client{Timeout: r.Config.LLM.Timeout})
	if err != nil {
		log.Printf("[APP] %v", err)
		return compose.New(nil, r.Persona)
	}
	log.Printf("[APP] text provider: %s", name)
	return compose.New(gen, r.Persona)
}

// Searcher returns the web-search client, or nil when no key is set.
func (r *Runtime) Searcher() websearch.Searcher {
	s, err := websearch.New(websearch.ConfigFrom(r.Config.Search), nil)
	if err != nil {
		log.Printf("[APP] research disabled: %v", err)
		return nil
	}
	return s
}

// Reader returns the Neynar read client.
func (r *Runtime) Reader() *farcaster.Neynar {
	fc := r.Config.Farcaster
	return farcaster.NewNeynar(fc.NeynarURL, fc.HubURL, fc.NeynarAPIKey, r.HTTP)
}

// Poster builds the signing publisher. Messages go to the hub over gRPC
// when FARCASTER_HUB_GRPC is set, otherwise through the HTTP hub API.
func (r *Runtime) Poster(reader *farcaster.Neynar) (farcaster.Poster, error) {
	if err := r.Config.RequireIdentity(); err != nil {
		return nil, err
	}
	fc := r.Config.Farcaster
	signer, err := farcaster.ParseSigner(fc.SignerKey)
	if err != nil {
		return nil, wrapMissing(err)
	}
	var sub farcaster.Submitter = reader
	if fc.HubGRPC != "" {
		hub, err := farcaster.DialHub(fc.HubGRPC, fc.HubGRPCTLS)
		if err != nil {
			return nil, err
		}
		r.track(hub)
		sub = hub
		log.Printf("[APP] submitting through hub gRPC at %s", fc.HubGRPC)
	}
	return farcaster.NewPublisher(fc.FID, signer, sub), nil
}

// Token opens the ERC-20 client for the configured wallet.
func (r *Runtime) Token() (*chain.Token, error) {
	if err := r.Config.RequireWallet(); err != nil {
		return nil, err
	}
	tok, err := chain.Open(r.Config.Chain, chain.NewRPC(r.Config.Chain.RPCURL, r.HTTP))
	if err != nil {
		return nil, wrapMissing(err)
	}
	log.Printf("[APP] wallet %s", tok.From().Hex())
	return tok, nil
}

// #endregion clients
