package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind             string
	gracePeriod      time.Duration
	idleTimeout      time.Duration
	port             int
	prefix           string
	profile          bool
	sessionRetention time.Duration
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.gracePeriod <= 0 {
		return fmt.Errorf("invalid grace period: %s", c.gracePeriod)
	}
	if c.sessionRetention < 0 {
		return fmt.Errorf("invalid session retention: %s", c.sessionRetention)
	}
	if c.idleTimeout < 0 {
		return fmt.Errorf("invalid idle timeout: %s", c.idleTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TOPDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "topdeck",
		Short:         "A two-player card-duel server with lobbies, quick match, and reconnection.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TOPDECK_BIND)")
	fs.DurationVar(&cfg.gracePeriod, "grace-period", 30*time.Second, "time a disconnected player may reclaim their seat (env: TOPDECK_GRACE_PERIOD)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", 30*time.Minute, "time before idle sessions are discarded, 0 to disable (env: TOPDECK_IDLE_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TOPDECK_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TOPDECK_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TOPDECK_PROFILE)")
	fs.DurationVar(&cfg.sessionRetention, "session-retention", 60*time.Second, "time a finished session stays queryable before deletion (env: TOPDECK_SESSION_RETENTION)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TOPDECK_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TOPDECK_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TOPDECK_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TOPDECK_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("topdeck v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
