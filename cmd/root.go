package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/honeynet/internal/config"
	"github.com/telhawk-systems/honeynet/internal/logging"
	"github.com/telhawk-systems/honeynet/internal/pipeline"
	"github.com/telhawk-systems/honeynet/internal/process"
)

var (
	cfgFile string
	workdir string
	strict  bool
	output  string

	cfg    *config.Config
	cfgErr error

	// newRunner is swapped in tests.
	newRunner = func(w io.Writer) process.Runner { return process.NewStreamingRunner(w) }
)

var rootCmd = &cobra.Command{
	Use:   "honeynet",
	Short: "Cowrie honeypot deployment pipeline",
	Long: `honeynet installs, configures and starts a Cowrie SSH honeypot,
collects its event log into a single JSON document and runs a
demonstration command on a remote host over SSH.

Run without a subcommand to execute the whole pipeline, or use the
stage commands to run one step at a time.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: prepareConfig,
	RunE:              runDeploy,
}

// Execute runs the root command with SIGINT and SIGTERM wired into
// cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./honeynet.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&workdir, "workdir", "", "directory all relative paths resolve against")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "exit non-zero when any stage fails")
	rootCmd.PersistentFlags().StringVar(&output, "output", "log", "output format: log, json")
}

func initConfig() {
	cfg, cfgErr = config.Load(cfgFile)
}

func prepareConfig(cmd *cobra.Command, args []string) error {
	if cfgErr != nil {
		return cfgErr
	}
	if workdir != "" {
		cfg.Workdir = workdir
	}
	switch output {
	case "log", "json":
		return nil
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func openLogger(cmd *cobra.Command) (*logging.Logger, error) {
	return logging.New(cmd.OutOrStdout(), cfg.Path(cfg.Output.RunLog))
}

// runPipeline executes p and applies the --strict and --output flags to
// its report.
func runPipeline(cmd *cobra.Command, p *pipeline.Pipeline) error {
	report := p.Run(cmd.Context())

	if output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	}

	if strict && report.Failed() {
		return fmt.Errorf("deployment failed: %w", report.Err())
	}
	return nil
}

func runDeploy(cmd *cobra.Command, args []string) error {
	log, err := openLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	return runPipeline(cmd, pipeline.Default(cfg, newRunner(cmd.OutOrStdout()), log))
}
