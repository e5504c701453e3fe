package auth

import (
	"github.com/code-payments/txstatus-server/pkg/config"
	"github.com/code-payments/txstatus-server/pkg/config/env"
	"github.com/code-payments/txstatus-server/pkg/config/memory"
	"github.com/code-payments/txstatus-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "TXSTATUS_"

	AllowedRemoteAddressesConfigEnvName = envConfigPrefix + "ALLOWED_REMOTE_ADDRESSES"

	PortalKeysConfigEnvName = envConfigPrefix + "PORTAL_KEYS"

	RateLimitPerSecondConfigEnvName = envConfigPrefix + "RATE_LIMIT_PER_SECOND"
	defaultRateLimitPerSecond       = 0
)

// DefaultAllowedRemoteAddresses are the published source ranges of the
// provider's callback servers.
var DefaultAllowedRemoteAddresses = []string{
	"185.60.20.0/24",
	"213.178.72.196",
	"213.178.72.197",
	"217.70.200.0/24",
}

type conf struct {
	allowedRemoteAddresses config.StringSlice
	portalKeys             config.StringSlice
	rateLimitPerSecond     config.Float64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			allowedRemoteAddresses: env.NewStringSliceConfig(AllowedRemoteAddressesConfigEnvName, DefaultAllowedRemoteAddresses),
			portalKeys:             env.NewStringSliceConfig(PortalKeysConfigEnvName, nil),
			rateLimitPerSecond:     env.NewFloat64Config(RateLimitPerSecondConfigEnvName, defaultRateLimitPerSecond),
		}
	}
}

type testOverrides struct {
	allowedRemoteAddresses []string
	portalKeys             []string
	rateLimitPerSecond     float64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			allowedRemoteAddresses: wrapper.NewStringSliceConfig(memory.NewConfig(overrides.allowedRemoteAddresses), overrides.allowedRemoteAddresses),
			portalKeys:             wrapper.NewStringSliceConfig(memory.NewConfig(overrides.portalKeys), overrides.portalKeys),
			rateLimitPerSecond:     wrapper.NewFloat64Config(memory.NewConfig(overrides.rateLimitPerSecond), defaultRateLimitPerSecond),
		}
	}
}
