// Package config holds the tunable settings for settlement flows. Values
// resolve from the environment with sane defaults; tests substitute
// in-memory configs.
package config

import (
	"time"

	"github.com/propchain/marketplace-client/pkg/config"
	"github.com/propchain/marketplace-client/pkg/config/env"
	"github.com/propchain/marketplace-client/pkg/config/wrapper"
)

const (
	envConfigPrefix = "MARKET_SERVICE_"

	BackendBaseURLConfigEnvName = envConfigPrefix + "BACKEND_BASE_URL"
	defaultBackendBaseURL       = "http://localhost:8080"

	SolanaRPCEndpointConfigEnvName = envConfigPrefix + "SOLANA_RPC_ENDPOINT"
	defaultSolanaRPCEndpoint       = "http://localhost:8899"

	// MarketplaceAuthorityConfigEnvName is the authority public key used as
	// a derivation input. It must come from configuration or the listing
	// record; candidate authorities are never probed against chain state.
	MarketplaceAuthorityConfigEnvName = envConfigPrefix + "MARKETPLACE_AUTHORITY_PUBLIC_KEY"

	MarketplaceFeeAccountConfigEnvName = envConfigPrefix + "MARKETPLACE_FEE_ACCOUNT"

	FeeBasisPointsConfigEnvName = envConfigPrefix + "FEE_BASIS_POINTS"
	defaultFeeBasisPoints       = 250 // 2.5%

	OnChainOfferConfigEnvName = envConfigPrefix + "ON_CHAIN_OFFER"
	defaultOnChainOffer       = false

	UseEscrowConfigEnvName = envConfigPrefix + "USE_ESCROW"
	defaultUseEscrow       = false

	TwoSignerConfigEnvName = envConfigPrefix + "TWO_SIGNER"
	defaultTwoSigner       = false

	DefaultOfferValidityConfigEnvName = envConfigPrefix + "DEFAULT_OFFER_VALIDITY"
	defaultDefaultOfferValidity       = 7 * 24 * time.Hour
)

type conf struct {
	backendBaseURL        config.String
	solanaRPCEndpoint     config.String
	marketplaceAuthority  config.String
	marketplaceFeeAccount config.String
	feeBasisPoints        config.Uint64
	onChainOffer          config.Bool
	useEscrow             config.Bool
	twoSigner             config.Bool
	defaultOfferValidity  config.Duration
}

// ConfigProvider defines how to provide config for settlement flows.
type ConfigProvider func(*conf)

// WithEnvConfigs resolves all config from the environment.
func WithEnvConfigs() ConfigProvider {
	return func(c *conf) {
		c.backendBaseURL = env.NewStringConfig(BackendBaseURLConfigEnvName, defaultBackendBaseURL)
		c.solanaRPCEndpoint = env.NewStringConfig(SolanaRPCEndpointConfigEnvName, defaultSolanaRPCEndpoint)
		c.marketplaceAuthority = env.NewStringConfig(MarketplaceAuthorityConfigEnvName, "")
		c.marketplaceFeeAccount = env.NewStringConfig(MarketplaceFeeAccountConfigEnvName, "")
		c.feeBasisPoints = env.NewUint64Config(FeeBasisPointsConfigEnvName, defaultFeeBasisPoints)
		c.onChainOffer = env.NewBoolConfig(OnChainOfferConfigEnvName, defaultOnChainOffer)
		c.useEscrow = env.NewBoolConfig(UseEscrowConfigEnvName, defaultUseEscrow)
		c.twoSigner = env.NewBoolConfig(TwoSignerConfigEnvName, defaultTwoSigner)
		c.defaultOfferValidity = env.NewDurationConfig(DefaultOfferValidityConfigEnvName, defaultDefaultOfferValidity)
	}
}

// Overrides for manual or test construction.
type Overrides struct {
	BackendBaseURL        config.Config
	SolanaRPCEndpoint     config.Config
	MarketplaceAuthority  config.Config
	MarketplaceFeeAccount config.Config
	FeeBasisPoints        config.Config
	OnChainOffer          config.Config
	UseEscrow             config.Config
	TwoSigner             config.Config
	DefaultOfferValidity  config.Config
}

// WithOverrides resolves config from explicit underlying configs, falling
// back to defaults for anything left nil.
func WithOverrides(o Overrides) ConfigProvider {
	return func(c *conf) {
		c.backendBaseURL = wrapper.NewStringConfig(orNoop(o.BackendBaseURL), defaultBackendBaseURL)
		c.solanaRPCEndpoint = wrapper.NewStringConfig(orNoop(o.SolanaRPCEndpoint), defaultSolanaRPCEndpoint)
		c.marketplaceAuthority = wrapper.NewStringConfig(orNoop(o.MarketplaceAuthority), "")
		c.marketplaceFeeAccount = wrapper.NewStringConfig(orNoop(o.MarketplaceFeeAccount), "")
		c.feeBasisPoints = wrapper.NewUint64Config(orNoop(o.FeeBasisPoints), defaultFeeBasisPoints)
		c.onChainOffer = wrapper.NewBoolConfig(orNoop(o.OnChainOffer), defaultOnChainOffer)
		c.useEscrow = wrapper.NewBoolConfig(orNoop(o.UseEscrow), defaultUseEscrow)
		c.twoSigner = wrapper.NewBoolConfig(orNoop(o.TwoSigner), defaultTwoSigner)
		c.defaultOfferValidity = wrapper.NewDurationConfig(orNoop(o.DefaultOfferValidity), defaultDefaultOfferValidity)
	}
}

func orNoop(c config.Config) config.Config {
	if c == nil {
		return config.NoopConfig
	}
	return c
}

// Config exposes the resolved settlement settings.
type Config struct {
	c *conf
}

func New(provider ConfigProvider) *Config {
	c := &conf{}
	provider(c)
	return &Config{c: c}
}

func (c *Config) BackendBaseURL() config.String        { return c.c.backendBaseURL }
func (c *Config) SolanaRPCEndpoint() config.String     { return c.c.solanaRPCEndpoint }
func (c *Config) MarketplaceAuthority() config.String  { return c.c.marketplaceAuthority }
func (c *Config) MarketplaceFeeAccount() config.String { return c.c.marketplaceFeeAccount }
func (c *Config) FeeBasisPoints() config.Uint64        { return c.c.feeBasisPoints }
func (c *Config) OnChainOffer() config.Bool            { return c.c.onChainOffer }
func (c *Config) UseEscrow() config.Bool               { return c.c.useEscrow }
func (c *Config) TwoSigner() config.Bool               { return c.c.twoSigner }
func (c *Config) DefaultOfferValidity() config.Duration {
	return c.c.defaultOfferValidity
}
