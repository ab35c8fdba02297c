package gitcl

import (
	"io"
	"strings"

	"github.com/flynn/json5"

	"go.skia.org/clwatcher/go/skerr"
	"go.skia.org/clwatcher/go/util"
)

// TryMasterConfig routes try builders to the masters which own them.
// "git cl try" requires the builder and master to match, so TriggerTryJobs
// groups its builders by master using this table before invoking the tool.
type TryMasterConfig struct {
	// Default is the master for builders not matched by any rule.
	Default string `json:"default"`
	// Rules are checked in order; the first match wins.
	Rules []TryMasterRule `json:"rules"`
}

// TryMasterRule maps builders whose name contains Substring to Master.
type TryMasterRule struct {
	Substring string `json:"substring"`
	Master    string `json:"master"`
}

// DefaultTryMasterConfig routes Android try builders to the Android
// tryserver and everything else to tryserver.blink.
var DefaultTryMasterConfig = TryMasterConfig{
	Default: "tryserver.blink",
	Rules: []TryMasterRule{
		{Substring: "android", Master: "tryserver.chromium.android"},
	},
}

// MasterFor returns the master which owns the given builder.
func (c TryMasterConfig) MasterFor(builder string) string {
	for _, rule := range c.Rules {
		if strings.Contains(builder, rule.Substring) {
			return rule.Master
		}
	}
	return c.Default
}

// Validate returns an error if the config is incomplete.
func (c TryMasterConfig) Validate() error {
	if c.Default == "" {
		return skerr.Fmt("TryMasterConfig is missing a default master")
	}
	for _, rule := range c.Rules {
		if rule.Substring == "" {
			return skerr.Fmt("TryMasterRule for master %q is missing a substring", rule.Master)
		}
		if rule.Master == "" {
			return skerr.Fmt("TryMasterRule for substring %q is missing a master", rule.Substring)
		}
	}
	return nil
}

// ReadTryMasterConfig loads a TryMasterConfig from a JSON5 file and
// validates it.
func ReadTryMasterConfig(path string) (*TryMasterConfig, error) {
	var cfg TryMasterConfig
	if err := util.WithReadFile(path, func(r io.Reader) error {
		return json5.NewDecoder(r).Decode(&cfg)
	}); err != nil {
		return nil, skerr.Wrapf(err, "reading try master config at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, skerr.Wrapf(err, "invalid try master config at %s", path)
	}
	return &cfg, nil
}
