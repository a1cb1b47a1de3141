package settlement

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/propchain/marketplace-client/pkg/config/memory"
	marketconfig "github.com/propchain/marketplace-client/pkg/market/config"
)

func TestProfileFromConfig_Defaults(t *testing.T) {
	conf := marketconfig.New(marketconfig.WithOverrides(marketconfig.Overrides{}))

	assert.Equal(t, Profile{}, ProfileFromConfig(context.Background(), conf))
}

func TestProfileFromConfig_EnvFlags(t *testing.T) {
	os.Setenv(marketconfig.OnChainOfferConfigEnvName, "true")
	os.Setenv(marketconfig.TwoSignerConfigEnvName, "true")
	defer os.Unsetenv(marketconfig.OnChainOfferConfigEnvName)
	defer os.Unsetenv(marketconfig.TwoSignerConfigEnvName)

	conf := marketconfig.New(marketconfig.WithEnvConfigs())

	profile := ProfileFromConfig(context.Background(), conf)
	assert.True(t, profile.OnChainOffer)
	assert.False(t, profile.UseEscrow)
	assert.True(t, profile.TwoSigner)
}

func TestProfileFromConfig_Overrides(t *testing.T) {
	conf := marketconfig.New(marketconfig.WithOverrides(marketconfig.Overrides{
		UseEscrow: memory.NewConfig(true),
	}))

	profile := ProfileFromConfig(context.Background(), conf)
	assert.False(t, profile.OnChainOffer)
	assert.True(t, profile.UseEscrow)
	assert.False(t, profile.TwoSigner)
}
