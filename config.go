package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind         string
	port         int
	prefix       string
	profile      bool
	publicURL    string
	recountDelay time.Duration
	revealPolicy string
	tlsCert      string
	tlsKey       string
	verbose      bool
	version      bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.revealPolicy != string(revealManual) && c.revealPolicy != string(revealInstant) {
		return fmt.Errorf("invalid reveal policy (must be %q or %q): %q", revealManual, revealInstant, c.revealPolicy)
	}
	if c.publicURL != "" {
		if _, err := url.ParseRequestURI(c.publicURL); err != nil {
			return fmt.Errorf("invalid public url: %w", err)
		}
	}
	if c.recountDelay < 0 {
		return fmt.Errorf("invalid recount delay: %s", c.recountDelay)
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
	v.SetEnvPrefix("HAYAOSHI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "hayaoshi",
		Short:         "A single-host buzzer quiz: one screen, many players, first correct answer wins.",
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

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: HAYAOSHI_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8000, "port to listen on (env: HAYAOSHI_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: HAYAOSHI_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: HAYAOSHI_PROFILE)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "externally reachable base URL, used for the join link and QR code (env: HAYAOSHI_PUBLIC_URL)")
	fs.DurationVar(&cfg.recountDelay, "recount-delay", 100*time.Millisecond, "delay before rebroadcasting player counts after a disconnect (env: HAYAOSHI_RECOUNT_DELAY)")
	fs.StringVar(&cfg.revealPolicy, "reveal-policy", string(revealManual), "when answers are revealed, either manual or instant (env: HAYAOSHI_REVEAL_POLICY)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: HAYAOSHI_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: HAYAOSHI_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: HAYAOSHI_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: HAYAOSHI_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("hayaoshi v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
