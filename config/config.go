// Package config holds the settings of the dklsctl tool and loads them from a
// file, DKLS_* environment variables and bound flags through viper.
package config

import (
	"strings"
	"time"

	"github.com/chain5j/chain5j-dkls/logging"
	"github.com/chain5j/chain5j-dkls/proofs"
	"github.com/chain5j/chain5j-dkls/protocol"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. DKLS_THRESHOLD.
const EnvPrefix = "DKLS"

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Threshold    uint8          `json:"threshold" mapstructure:"threshold"`
	ShareCount   uint8          `json:"share_count" mapstructure:"share_count"`
	Normalize    bool           `json:"normalize" mapstructure:"normalize"`
	PhaseTimeout time.Duration  `json:"phase_timeout" mapstructure:"phase_timeout"`
	Proof        proofs.Params  `json:"proof" mapstructure:"proof"`
	Log          logging.Config `json:"log" mapstructure:"log"`
	OutputDir    string         `json:"output_dir" mapstructure:"output_dir"`
}

func Default() *Config {
	return &Config{
		Threshold:    2,
		ShareCount:   2,
		Normalize:    true,
		PhaseTimeout: 30 * time.Second,
		Proof:        proofs.DefaultParams,
		Log:          logging.DefaultConfig(),
		OutputDir:    ".",
	}
}

func (c *Config) Validate() error {
	if err := c.Parameters().Validate(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if c.PhaseTimeout <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "phase timeout %s", c.PhaseTimeout)
	}
	if err := c.Proof.Validate(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if err := c.Log.Validate(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if c.OutputDir == "" {
		return errors.Wrap(ErrInvalidConfig, "empty output directory")
	}
	return nil
}

func (c *Config) Parameters() protocol.Parameters {
	return protocol.Parameters{Threshold: c.Threshold, ShareCount: c.ShareCount}
}

func (c *Config) ProofParams() proofs.Params {
	return c.Proof
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("threshold", d.Threshold)
	v.SetDefault("share_count", d.ShareCount)
	v.SetDefault("normalize", d.Normalize)
	v.SetDefault("phase_timeout", d.PhaseTimeout)
	v.SetDefault("proof.repetitions", d.Proof.Repetitions)
	v.SetDefault("proof.challenge_bits", d.Proof.ChallengeBits)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("output_dir", d.OutputDir)
}

// Load reads the configuration from v. A config file must already be set on
// v if one is wanted; a missing file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", v.ConfigFileUsed())
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Sample is a commented configuration file holding the defaults.
const Sample = `# dklsctl configuration
# Flags override these values, and DKLS_* environment variables override
# the file, e.g. DKLS_THRESHOLD=3 or DKLS_LOG_LEVEL=debug.

# t-of-n sharing created by keygen and rekey
threshold: 2
share_count: 2

# map s to the lower half of the group order
normalize: true

# how long a party waits for the messages of one protocol phase
phase_timeout: 30s

# soundness of the key generation proofs: repetitions * challenge_bits >= 128
proof:
  repetitions: 1
  challenge_bits: 256

log:
  level: info       # debug, info, warn, error
  format: console   # console or json

# where keygen, rekey and derive write party files
output_dir: .
`
