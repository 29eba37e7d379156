package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kardianos/service"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gysosin/system_stats/internal/collectors"
	"github.com/gysosin/system_stats/internal/config"
	"github.com/gysosin/system_stats/internal/logging"
	"github.com/gysosin/system_stats/internal/publisher"
	"github.com/gysosin/system_stats/internal/server"
	"github.com/gysosin/system_stats/internal/tuple"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	out        io.Writer
	configFile string
	logLevel   string

	cfg    *config.Config
	log    zerolog.Logger
	tables []collectors.Table
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "systemstats",
		Short:         "Collect load average and operating system information",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "system_stats.ini", "Path to INI config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	root.AddCommand(
		a.collectCmd(),
		a.serveCmd(),
		a.pushCmd(),
		a.serviceCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	a.cfg = cfg
	a.log = logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	a.tables = collectors.Tables(a.log)
	return nil
}

type tableOutput struct {
	Table   string      `json:"table"`
	Columns []string    `json:"columns"`
	Rows    []tuple.Row `json:"rows"`
}

func (a *app) collectCmd() *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "collect [table...]",
		Short: "Run tables once and print their rows as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := selectTables(a.tables, args)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(a.out)
			if pretty {
				enc.SetIndent("", "  ")
			}
			for _, t := range tables {
				store := collectors.Collect(cmd.Context(), t)
				rows := store.Rows()
				if rows == nil {
					rows = []tuple.Row{}
				}
				if err := enc.Encode(tableOutput{
					Table:   t.Desc().Name,
					Columns: t.Desc().Names(),
					Rows:    rows,
				}); err != nil {
					return fmt.Errorf("write %s: %w", t.Desc().Name, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent JSON output")
	return cmd
}

func selectTables(all []collectors.Table, names []string) ([]collectors.Table, error) {
	if len(names) == 0 {
		return all, nil
	}
	out := make([]collectors.Table, 0, len(names))
	for _, name := range names {
		t, err := collectors.Lookup(all, name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (a *app) serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /metrics and /tables over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Port = port
			}
			s, err := a.newService()
			if err != nil {
				return err
			}
			return s.Run()
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Override port from config (e.g. 9182)")
	return cmd
}

func (a *app) newService() (service.Service, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	srv := server.New(":"+a.cfg.Port, a.tables, a.log)
	prg := server.NewProgram(srv, a.log)

	s, err := service.New(prg, server.ServiceConfig([]string{"--config", a.configFile, "serve"}))
	if err != nil {
		return nil, fmt.Errorf("cannot create service: %w", err)
	}
	return s, nil
}

func (a *app) pushCmd() *cobra.Command {
	var natsURL, interval, prefix string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Publish rows to NATS JetStream on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			if natsURL != "" {
				a.cfg.NatsURL = natsURL
			}
			if prefix != "" {
				a.cfg.SubjectPrefix = prefix
			}
			if interval != "" {
				d, err := parseInterval(interval)
				if err != nil {
					return err
				}
				a.cfg.PushInterval = d
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			if err := a.cfg.ResolveSystemName(); err != nil {
				return err
			}

			nc, js, err := publisher.Connect(a.cfg.NatsURL)
			if err != nil {
				return err
			}
			defer nc.Drain()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := publisher.New(js, a.tables, a.cfg.SystemName, a.cfg.SubjectPrefix, a.log)
			if err := p.Run(ctx, a.cfg.PushInterval); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL")
	cmd.Flags().StringVar(&interval, "interval", "", "How often to push, e.g. 500ms, 2s")
	cmd.Flags().StringVar(&prefix, "subject-prefix", "", "Subject prefix; rows go to <prefix>.<table>")
	return cmd
}

// serviceActions are the service subcommand arguments: the service manager
// controls plus run, which serves in the foreground.
func serviceActions() []string {
	return append(append([]string{}, service.ControlAction[:]...), "run")
}

func (a *app) serviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "service <install|uninstall|start|stop|restart|run>",
		Short:     "Control the system service running serve",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: serviceActions(),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newService()
			if err != nil {
				return err
			}
			if args[0] == "run" {
				return s.Run()
			}
			if err := service.Control(s, args[0]); err != nil {
				return fmt.Errorf("service %s: %w (valid actions: %v)", args[0], err, serviceActions())
			}
			a.log.Info().Str("action", args[0]).Msg("Service action executed")
			return nil
		},
	}
}

func parseInterval(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", raw, err)
	}
	return d, nil
}
