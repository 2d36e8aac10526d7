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
	allowedOrigins []string
	bind           string
	defaultTimer   int
	maxMessageSize int64
	pingInterval   time.Duration
	port           int
	prefix         string
	profile        bool
	sendBuffer     int
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
	writeTimeout   time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.defaultTimer < 1 {
		return fmt.Errorf("invalid default timer (must be at least 1 second): %d", c.defaultTimer)
	}
	if c.sendBuffer < 1 {
		return fmt.Errorf("invalid send buffer (must be at least 1): %d", c.sendBuffer)
	}
	if c.maxMessageSize < 1 {
		return fmt.Errorf("invalid max message size (must be at least 1 byte): %d", c.maxMessageSize)
	}
	if c.pingInterval <= 0 {
		return fmt.Errorf("invalid ping interval (must be positive): %s", c.pingInterval)
	}
	if c.writeTimeout <= 0 {
		return fmt.Errorf("invalid write timeout (must be positive): %s", c.writeTimeout)
	}
	return nil
}

// pongWait is how long a connection may stay silent, pongs included, before
// it is treated as disconnected.
func (c *Config) pongWait() time.Duration {
	return 2 * c.pingInterval
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) allowAnyOrigin() bool {
	for _, o := range c.allowedOrigins {
		if o == "*" {
			return true
		}
	}
	return len(c.allowedOrigins) == 0
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PLANNINGPOKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "planningpoker",
		Short:         "Real-time planning poker rooms for estimating work items.",
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

	fs.StringSliceVar(&cfg.allowedOrigins, "allowed-origins", []string{"*"}, "origins allowed to create sessions and open websockets (env: PLANNINGPOKER_ALLOWED_ORIGINS)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PLANNINGPOKER_BIND)")
	fs.IntVar(&cfg.defaultTimer, "default-timer", 15, "round timer in seconds when none is given (env: PLANNINGPOKER_DEFAULT_TIMER)")
	fs.Int64Var(&cfg.maxMessageSize, "max-message-size", 4096, "maximum inbound websocket message size in bytes (env: PLANNINGPOKER_MAX_MESSAGE_SIZE)")
	fs.DurationVar(&cfg.pingInterval, "ping-interval", 30*time.Second, "time between websocket pings; connections silent for twice this are closed (env: PLANNINGPOKER_PING_INTERVAL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PLANNINGPOKER_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PLANNINGPOKER_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PLANNINGPOKER_PROFILE)")
	fs.IntVar(&cfg.sendBuffer, "send-buffer", 16, "messages queued per connection before it is dropped (env: PLANNINGPOKER_SEND_BUFFER)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PLANNINGPOKER_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PLANNINGPOKER_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PLANNINGPOKER_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PLANNINGPOKER_VERSION)")
	fs.DurationVar(&cfg.writeTimeout, "write-timeout", 10*time.Second, "time allowed to write one websocket message (env: PLANNINGPOKER_WRITE_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("planningpoker v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
