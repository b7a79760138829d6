package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"loadq/internal/banner"
	"loadq/internal/cli"
	"loadq/internal/report"
	"loadq/internal/runner"
	"loadq/internal/tui"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "loadq",
	Short: "loadq - open-loop HTTP load generator",
	Long: `
loadq sends HTTP requests at a fixed rate for a fixed duration, whether or not
earlier requests have completed, and reports success rate, latency percentiles
and a breakdown of errors and status codes.

Requests are never limited by a concurrency cap: the number in flight grows with
rate × latency. Pick the rate with the target and the local machine in mind.`,
	Example: `  loadq --url http://localhost:8080/fast --rate 50 --duration 30s
  loadq --url https://api.example.com/items -X POST -H 'Content-Type: application/json' -b '{"a":1}'
  loadq --url 'http://localhost:8080/fast?id={{uuid}}' --template --tui`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLoad,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		if errors.Is(err, runner.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(dummyCmd, historyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.loadq.yaml)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Bool("log-json", false, "Log as JSON")
	pf.String("log-file", "", "Write logs to this file instead of stderr")
	pf.String("history-path", "", "History database (default is $HOME/.loadq/history.db)")

	f := rootCmd.Flags()
	f.StringP("url", "u", "", "Target URL")
	f.Float64P("rate", "r", runner.DefaultRate, "Requests per second")
	f.DurationP("duration", "d", runner.DefaultDuration, "How long to keep issuing requests")
	f.StringP("method", "X", runner.DefaultMethod, "HTTP method")
	f.StringArrayP("header", "H", nil, "HTTP header (e.g. \"Key: Value\"), repeatable")
	f.StringP("body", "b", "", "Request body")
	f.Duration("timeout", 0, "Per-request timeout (0 means none)")
	f.Bool("insecure", false, "Skip TLS certificate verification")
	f.Bool("template", false, "Render {{uuid}}, {{seq}}, {{randomInt a b}}... in URL, headers and body per request")
	f.StringP("out", "o", "", "Export the summary to <prefix>_summary.json")
	f.Bool("tui", false, "Show the live dashboard")
	f.Bool("history", false, "Save the run summary to the history database")

	viper.BindPFlags(pf)
	viper.BindPFlags(f)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".loadq")
		}
	}
	viper.SetEnvPrefix("LOADQ")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "❌ reading config: %v\n", err)
			os.Exit(2)
		}
	}
}

func runLoad(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()

	cfg, err := configFromViper(v, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tuiMode := v.GetBool("tui")
	log, closeLog, err := setupLogging(v, tuiMode)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		// Restore default handling so a second signal kills the process.
		stop()
	}()

	opts := cli.Options{
		OutPrefix:   v.GetString("out"),
		History:     v.GetBool("history"),
		HistoryPath: v.GetString("history-path"),
	}

	if !tuiMode {
		_, err := cli.Start(ctx, cfg, opts, log)
		return err
	}

	rep, err := tui.Run(ctx, cfg, log)
	if rep == nil {
		return err
	}
	if werr := report.WriteText(os.Stdout, rep); werr != nil {
		return werr
	}
	cli.AutoReport(opts, cfg, rep, log)
	return err
}

// configFromViper builds the run configuration from flags, env and config file.
func configFromViper(v *viper.Viper, flags *pflag.FlagSet) (runner.Config, error) {
	cfg := runner.DefaultConfig()
	cfg.URL = v.GetString("url")
	cfg.Rate = v.GetFloat64("rate")
	cfg.Duration = v.GetDuration("duration")
	cfg.Method = strings.ToUpper(v.GetString("method"))
	cfg.Body = v.GetString("body")
	cfg.Timeout = v.GetDuration("timeout")
	cfg.Insecure = v.GetBool("insecure")
	cfg.Template = v.GetBool("template")

	if cfg.URL == "" {
		return cfg, fmt.Errorf("%w: --url is required", runner.ErrInvalidConfig)
	}

	// Read headers straight from the flag when given: viper splits list
	// flags on commas, which header values may contain.
	raw := v.GetStringSlice("header")
	if f := flags.Lookup("header"); f != nil && f.Changed {
		var err error
		if raw, err = flags.GetStringArray("header"); err != nil {
			return cfg, err
		}
	}
	headers, err := parseHeaders(raw)
	if err != nil {
		return cfg, err
	}
	cfg.Headers = headers
	return cfg, nil
}

func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("%w: header %q must look like \"Key: Value\"", runner.ErrInvalidConfig, h)
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers, nil
}

// setupLogging configures the process-wide logrus logger. The dashboard owns
// the terminal, so without --log-file logs are discarded in TUI mode.
func setupLogging(v *viper.Viper, tuiMode bool) (*logrus.Logger, func(), error) {
	log := logrus.StandardLogger()
	noop := func() {}

	level, err := logrus.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return nil, noop, fmt.Errorf("%w: %v", runner.ErrInvalidConfig, err)
	}
	log.SetLevel(level)

	if v.GetBool("log-json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if path := v.GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, noop, fmt.Errorf("opening log file: %w", err)
		}
		log.SetOutput(f)
		return log, func() { f.Close() }, nil
	}

	if tuiMode {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
	}
	return log, noop, nil
}
