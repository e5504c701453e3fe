package auth

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/txstatus-server/pkg/netutil"
)

// Validator decides whether a caller's network identity and presented key are
// acceptable.
type Validator interface {
	IsAllowedRemote(ctx context.Context, remoteAddress string) bool
	IsValidKey(ctx context.Context, presentedKey string) bool
}

// ConfigValidator is a Validator backed by the configured IP allow-list and
// portal keys. The provider presents the lowercase hex MD5 digest of a portal
// key, never the key itself.
type ConfigValidator struct {
	log  *logrus.Entry
	conf *conf

	allowListMu  sync.Mutex
	allowListRaw string
	allowList    *netutil.AllowList
}

func NewConfigValidator(configProvider ConfigProvider) *ConfigValidator {
	return &ConfigValidator{
		log:  logrus.StandardLogger().WithField("type", "auth/ConfigValidator"),
		conf: configProvider(),
	}
}

// IsAllowedRemote implements Validator.IsAllowedRemote
func (v *ConfigValidator) IsAllowedRemote(ctx context.Context, remoteAddress string) bool {
	allowList := v.getAllowList(ctx)
	if allowList == nil {
		return false
	}
	return allowList.Contains(remoteAddress)
}

// IsValidKey implements Validator.IsValidKey
func (v *ConfigValidator) IsValidKey(ctx context.Context, presentedKey string) bool {
	presented := []byte(strings.ToLower(strings.TrimSpace(presentedKey)))
	if len(presented) == 0 {
		return false
	}

	// Every configured key is compared so timing doesn't reveal which matched
	var matched int
	for _, portalKey := range v.conf.portalKeys.Get(ctx) {
		expected := []byte(HashPortalKey(portalKey))
		matched |= subtle.ConstantTimeCompare(presented, expected)
	}
	return matched == 1
}

func (v *ConfigValidator) getAllowList(ctx context.Context) *netutil.AllowList {
	entries := v.conf.allowedRemoteAddresses.Get(ctx)
	raw := strings.Join(entries, ",")

	v.allowListMu.Lock()
	defer v.allowListMu.Unlock()

	if v.allowList != nil && raw == v.allowListRaw {
		return v.allowList
	}

	allowList, err := netutil.NewAllowList(entries)
	if err != nil {
		// Keep using the last valid allow-list, if any
		v.log.WithError(err).Warn("invalid remote address allow-list")
		return v.allowList
	}

	log := v.log.WithField("entries", allowList.Len())
	if allowList.Len() == 0 {
		log.Warn("remote address allow-list is empty, all callbacks will be denied")
	} else {
		log.Info("remote address allow-list loaded")
	}

	v.allowListRaw = raw
	v.allowList = allowList
	return allowList
}

// HashPortalKey returns the digest of a portal key as presented by the
// provider.
func HashPortalKey(portalKey string) string {
	digest := md5.Sum([]byte(portalKey))
	return hex.EncodeToString(digest[:])
}
