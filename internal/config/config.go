package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// #region errors

// ErrMissing marks a configuration error. Runs that hit it abort before any
// external side effect.
var ErrMissing = errors.New("missing configuration")

// #endregion errors

// #region switch

// Switch is a boolean that only turns off for an explicit "0", "false", "no"
// or "off". Anything else, including garbage, leaves it on.
type Switch bool

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (s *Switch) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "0", "false", "no", "off":
		*s = false
	default:
		*s = true
	}
	return nil
}

// #endregion switch

// #region config

// Cadence holds the posting rhythm knobs.
type Cadence struct {
	QuietStart    int     `env:"QUIET_START" envDefault:"22"`
	QuietEnd      int     `env:"QUIET_END" envDefault:"6"`
	QuietEnabled  Switch  `env:"QUIET_ENABLED" envDefault:"true"`
	MinPosts      int     `env:"MIN_POSTS" envDefault:"1"`
	TargetPosts   int     `env:"TARGET_POSTS" envDefault:"3"`
	MaxPosts      int     `env:"MAX_POSTS" envDefault:"5"`
	CooldownHours float64 `env:"COOLDOWN_HOURS" envDefault:"2"`
	MustPostBy    int     `env:"MUST_POST_BY" envDefault:"20"`
}

// Replies bounds the reply crawler's per-run cost.
type Replies struct {
	MaxRepliesPerRun  int `env:"MAX_REPLIES_PER_RUN" envDefault:"5"`
	MaxCastsToCheck   int `env:"MAX_CASTS_TO_CHECK" envDefault:"5"`
	MaxCastAgeHours   int `env:"MAX_CAST_AGE_HOURS" envDefault:"72"`
	MaxSearchesPerRun int `env:"MAX_SEARCHES_PER_RUN" envDefault:"2"`
	MaxThreadDepth    int `env:"MAX_THREAD_DEPTH" envDefault:"3"`
}

// Tips configures the reward distributor.
type Tips struct {
	Amount        string `env:"TIP_AMOUNT_USDC" envDefault:"0.02"`
	MaxWinners    int    `env:"TIP_MAX_WINNERS" envDefault:"1"`
	MinAgeMinutes int    `env:"TIP_MIN_AGE_MINUTES" envDefault:"120"`
}

// LLM selects and configures the generative-text backend.
type LLM struct {
	Provider      string        `env:"PROMPT_PROVIDER"`
	Model         string        `env:"PROMPT_MODEL"`
	OpenRouterKey string        `env:"OPENROUTER_API_KEY"`
	OpenRouterURL string        `env:"OPENROUTER_API_URL" envDefault:"https://openrouter.ai/api/v1/chat/completions"`
	AnthropicKey  string        `env:"ANTHROPIC_API_KEY"`
	AnthropicURL  string        `env:"ANTHROPIC_API_URL" envDefault:"https://api.anthropic.com/v1/messages"`
	Timeout       time.Duration `env:"PROMPT_TIMEOUT" envDefault:"30s"`
}

// Search configures the web-search backend.
type Search struct {
	BraveKey string        `env:"BRAVE_API_KEY"`
	BraveURL string        `env:"BRAVE_API_URL" envDefault:"https://api.search.brave.com/res/v1/web/search"`
	Delay    time.Duration `env:"SEARCH_DELAY" envDefault:"1500ms"`
	Timeout  time.Duration `env:"SEARCH_TIMEOUT" envDefault:"15s"`
}

// Farcaster holds the agent identity and social-network endpoints.
type Farcaster struct {
	FID          uint64 `env:"FARCASTER_FID"`
	SignerKey    string `env:"FARCASTER_SIGNER_KEY"`
	NeynarAPIKey string `env:"NEYNAR_API_KEY"`
	NeynarURL    string `env:"NEYNAR_API_URL" envDefault:"https://api.neynar.com"`
	HubURL       string `env:"FARCASTER_HUB_URL" envDefault:"https://hub-api.neynar.com"`
	HubGRPC      string `env:"FARCASTER_HUB_GRPC"`
	HubGRPCTLS   bool   `env:"FARCASTER_HUB_GRPC_TLS" envDefault:"true"`
}

// Chain configures the token-transfer client.
type Chain struct {
	RPCURL         string        `env:"BASE_RPC_URL" envDefault:"https://mainnet.base.org"`
	PrivateKey     string        `env:"WALLET_PRIVATE_KEY"`
	TokenAddress   string        `env:"USDC_ADDRESS" envDefault:"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"`
	TokenSymbol    string        `env:"TOKEN_SYMBOL" envDefault:"USDC"`
	ExplorerTxURL  string        `env:"EXPLORER_TX_URL" envDefault:"https://basescan.org/tx/"`
	ConfirmTimeout time.Duration `env:"TX_CONFIRM_TIMEOUT" envDefault:"2m"`
	PollInterval   time.Duration `env:"TX_POLL_INTERVAL" envDefault:"2s"`
}

// Agent is the full process configuration.
type Agent struct {
	StatePath    string        `env:"AGENT_STATE_DB" envDefault:".state/agent.db"`
	RunLock      Switch        `env:"AGENT_RUN_LOCK" envDefault:"true"`
	RunLockTTL   time.Duration `env:"AGENT_RUN_LOCK_TTL" envDefault:"15m"`
	EagerPersist bool          `env:"AGENT_EAGER_PERSIST" envDefault:"false"`
	Timezone     string        `env:"AGENT_TIMEZONE"`
	PersonaFile  string        `env:"AGENT_PERSONA_FILE"`
	DiscoveryMD  string        `env:"DISCOVERY_MD"`
	OTelEndpoint string        `env:"AGENT_OTEL_ENDPOINT"`

	Cadence   Cadence
	Replies   Replies
	Tips      Tips
	LLM       LLM
	Search    Search
	Farcaster Farcaster
	Chain     Chain
}

// #endregion config

// #region load

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the agent configuration from the environment.
func Load() (Agent, error) {
	var cfg Agent
	if err := ParseEnv(&cfg); err != nil {
		return Agent{}, err
	}
	return cfg, nil
}

// Location resolves AGENT_TIMEZONE, defaulting to the process local zone.
func (a Agent) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// #endregion load

// #region requirements

// RequireIdentity reports a configuration error when the Farcaster identity or
// signing key is absent.
func (a Agent) RequireIdentity() error {
	var missing []string
	if a.Farcaster.FID == 0 {
		missing = append(missing, "FARCASTER_FID")
	}
	if a.Farcaster.SignerKey == "" {
		missing = append(missing, "FARCASTER_SIGNER_KEY")
	}
	if a.Farcaster.NeynarAPIKey == "" {
		missing = append(missing, "NEYNAR_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// RequireWallet reports a configuration error when no wallet key is set.
func (a Agent) RequireWallet() error {
	if a.Chain.PrivateKey == "" {
		return fmt.Errorf("%w: WALLET_PRIVATE_KEY", ErrMissing)
	}
	return nil
}

// RequireSearch reports a configuration error when no search key is set.
func (a Agent) RequireSearch() error {
	if a.Search.BraveKey == "" {
		return fmt.Errorf("%w: BRAVE_API_KEY", ErrMissing)
	}
	return nil
}

// #endregion requirements
