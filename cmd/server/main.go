// agentdesk is the agent orchestration core of the dashboard chat surface.
//
// Commands:
//   - serve   run the HTTP API (default)
//   - agents  print the agent table
//   - route   show which agent would answer a message
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agentoven/agentdesk/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("agentdesk failed")
		os.Exit(1)
	}
}

// options are the flags shared by every command. Flags override the
// environment.
type options struct {
	port       int
	agentsFile string
}

func (o *options) config() *config.Config {
	cfg := config.Load()
	if o.port > 0 {
		cfg.Port = o.port
	}
	if o.agentsFile != "" {
		cfg.AgentsFile = o.agentsFile
	}
	return cfg
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	serve := newServeCmd(opts)

	root := &cobra.Command{
		Use:           "agentdesk",
		Short:         "Route chat messages to agent personas and their model providers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(opts.config().Log)
		},
		RunE: serve.RunE,
	}
	root.PersistentFlags().StringVar(&opts.agentsFile, "agents-file", "", "YAML agents table (default: built-in agents)")
	root.PersistentFlags().IntVar(&opts.port, "port", 0, "HTTP port (default: $AGENTDESK_PORT or 8080)")

	root.AddCommand(serve, newAgentsCmd(opts), newRouteCmd(opts))
	return root
}

// setupLogging configures the global zerolog logger.
func setupLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if strings.EqualFold(cfg.Format, "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
