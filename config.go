package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/promptbox/internal/game"
	"github.com/Seednode/promptbox/internal/imagegen"
)

type Config struct {
	bind           string
	fallbackImage  string
	gatewayKey     string
	gatewayTimeout time.Duration
	gatewayURL     string
	maxPlayers     int
	maxRounds      int
	messageBurst   int
	messageRate    float64
	port           int
	prefix         string
	profile        bool
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxPlayers < 1 {
		return fmt.Errorf("invalid max players (must be at least 1): %d", c.maxPlayers)
	}
	if c.maxRounds < 1 {
		return fmt.Errorf("invalid max rounds (must be at least 1): %d", c.maxRounds)
	}
	if c.gatewayTimeout <= 0 {
		return fmt.Errorf("invalid gateway timeout (must be positive): %s", c.gatewayTimeout)
	}
	if c.messageRate <= 0 || c.messageBurst < 1 {
		return fmt.Errorf("invalid message rate limit (must be positive): %v/s, burst %d", c.messageRate, c.messageBurst)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// fallback returns the image used when generation is unavailable. The
// built-in image lives under the route prefix.
func (c *Config) fallback() game.ImageRef {
	if c.fallbackImage != "" {
		return game.ImageRef(c.fallbackImage)
	}
	return game.ImageRef(strings.TrimSuffix(c.prefix, "/")) + imagegen.DefaultFallback
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PROMPTBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "promptbox",
		Short:         "A multiplayer party game about recreating AI-generated images from their prompts.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PROMPTBOX_BIND)")
	fs.StringVar(&cfg.fallbackImage, "fallback-image", "", "image shown when generation fails (default: built-in placeholder) (env: PROMPTBOX_FALLBACK_IMAGE)")
	fs.StringVar(&cfg.gatewayKey, "gateway-key", "", "api key for the image generation service (env: PROMPTBOX_GATEWAY_KEY)")
	fs.DurationVar(&cfg.gatewayTimeout, "gateway-timeout", imagegen.DefaultTimeout, "timeout for each image generation request (env: PROMPTBOX_GATEWAY_TIMEOUT)")
	fs.StringVar(&cfg.gatewayURL, "gateway-url", "", "base url of an OpenAI-compatible image api; empty serves only the fallback image (env: PROMPTBOX_GATEWAY_URL)")
	fs.IntVar(&cfg.maxPlayers, "max-players", game.DefaultMaxPlayers, "maximum players per room (env: PROMPTBOX_MAX_PLAYERS)")
	fs.IntVar(&cfg.maxRounds, "max-rounds", 10, "maximum rounds a room may request (env: PROMPTBOX_MAX_ROUNDS)")
	fs.IntVar(&cfg.messageBurst, "message-burst", 10, "websocket messages a client may send in a burst (env: PROMPTBOX_MESSAGE_BURST)")
	fs.Float64Var(&cfg.messageRate, "message-rate", 5, "sustained websocket messages per second per client (env: PROMPTBOX_MESSAGE_RATE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PROMPTBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PROMPTBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PROMPTBOX_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PROMPTBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PROMPTBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PROMPTBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PROMPTBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("promptbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
