package transactionstatus

import (
	"github.com/code-payments/txstatus-server/pkg/config"
	"github.com/code-payments/txstatus-server/pkg/config/env"
	"github.com/code-payments/txstatus-server/pkg/config/memory"
	"github.com/code-payments/txstatus-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "TXSTATUS_"

	TrustedProxyHopsConfigEnvName = envConfigPrefix + "TRUSTED_PROXY_HOPS"
	defaultTrustedProxyHops       = 0

	AcceptQueryParametersConfigEnvName = envConfigPrefix + "ACCEPT_QUERY_PARAMETERS"
	defaultAcceptQueryParameters       = true

	MaxBodySizeConfigEnvName = envConfigPrefix + "MAX_BODY_SIZE"
	defaultMaxBodySize       = 64 * 1024
)

type conf struct {
	trustedProxyHops      config.Uint64
	acceptQueryParameters config.Bool
	maxBodySize           config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			trustedProxyHops:      env.NewUint64Config(TrustedProxyHopsConfigEnvName, defaultTrustedProxyHops),
			acceptQueryParameters: env.NewBoolConfig(AcceptQueryParametersConfigEnvName, defaultAcceptQueryParameters),
			maxBodySize:           env.NewUint64Config(MaxBodySizeConfigEnvName, defaultMaxBodySize),
		}
	}
}

type testOverrides struct {
	trustedProxyHops      uint64
	acceptQueryParameters bool
	maxBodySize           uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			trustedProxyHops:      wrapper.NewUint64Config(memory.NewConfig(overrides.trustedProxyHops), defaultTrustedProxyHops),
			acceptQueryParameters: wrapper.NewBoolConfig(memory.NewConfig(overrides.acceptQueryParameters), defaultAcceptQueryParameters),
			maxBodySize:           wrapper.NewUint64Config(memory.NewConfig(overrides.maxBodySize), defaultMaxBodySize),
		}
	}
}
