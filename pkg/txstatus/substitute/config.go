package substitute

import (
	"time"

	"github.com/code-payments/txstatus-server/pkg/config"
	"github.com/code-payments/txstatus-server/pkg/config/env"
	"github.com/code-payments/txstatus-server/pkg/config/memory"
	"github.com/code-payments/txstatus-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "TXSTATUS_"

	LockTimeoutConfigEnvName = envConfigPrefix + "SUBSTITUTE_LOCK_TIMEOUT"
	defaultLockTimeout       = 10 * time.Second
)

type conf struct {
	lockTimeout config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			lockTimeout: env.NewDurationConfig(LockTimeoutConfigEnvName, defaultLockTimeout),
		}
	}
}

type testOverrides struct {
	lockTimeout time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			lockTimeout: wrapper.NewDurationConfig(memory.NewConfig(overrides.lockTimeout), defaultLockTimeout),
		}
	}
}
