package cmd

import (
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/honeynet/internal/collector"
	"github.com/telhawk-systems/honeynet/internal/config"
	"github.com/telhawk-systems/honeynet/internal/honeypot"
	"github.com/telhawk-systems/honeynet/internal/logging"
	"github.com/telhawk-systems/honeynet/internal/pipeline"
	"github.com/telhawk-systems/honeynet/internal/process"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the full deployment pipeline",
	Long:  `Provision, configure and start Cowrie, collect its logs, then run the configured remote command and forwarding`,
	Args:  cobra.NoArgs,
	RunE:  runDeploy,
}

type stageFactory func(cfg *config.Config, runner process.Runner, log *logging.Logger) pipeline.Stage

var (
	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Clone Cowrie, create its virtualenv and install requirements",
		Args:  cobra.NoArgs,
		RunE: stageRunE(func(cfg *config.Config, runner process.Runner, log *logging.Logger) pipeline.Stage {
			return honeypot.NewProvisioner(cfg, runner, log)
		}),
	}

	configureCmd = &cobra.Command{
		Use:   "configure",
		Short: "Append the custom block to cowrie.cfg",
		Args:  cobra.NoArgs,
		RunE: stageRunE(func(cfg *config.Config, _ process.Runner, log *logging.Logger) pipeline.Stage {
			return honeypot.NewConfigurator(cfg, log)
		}),
	}

	collectCmd = &cobra.Command{
		Use:   "collect",
		Short: "Convert the Cowrie event log into a JSON array",
		Args:  cobra.NoArgs,
		RunE: stageRunE(func(cfg *config.Config, _ process.Runner, log *logging.Logger) pipeline.Stage {
			return collector.New(cfg, log)
		}),
	}

	forwardCmd = &cobra.Command{
		Use:   "forward",
		Short: "Bulk index collected events into OpenSearch",
		Args:  cobra.NoArgs,
		RunE: stageRunE(func(cfg *config.Config, _ process.Runner, log *logging.Logger) pipeline.Stage {
			return pipeline.ForwardStage(cfg, log)
		}),
	}
)

func init() {
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(forwardCmd)

	for _, d := range []honeypot.Directive{
		honeypot.DirectiveStart,
		honeypot.DirectiveStop,
		honeypot.DirectiveStatus,
		honeypot.DirectiveRestart,
	} {
		rootCmd.AddCommand(directiveCmd(d))
	}
}

func directiveCmd(d honeypot.Directive) *cobra.Command {
	return &cobra.Command{
		Use:   string(d),
		Short: "Run cowrie " + string(d) + " inside the virtualenv",
		Args:  cobra.NoArgs,
		RunE: stageRunE(func(cfg *config.Config, runner process.Runner, log *logging.Logger) pipeline.Stage {
			return honeypot.NewLauncher(cfg, runner, log, d)
		}),
	}
}

// stageRunE runs a single stage as a one-stage pipeline without hooks.
func stageRunE(build stageFactory) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log, err := openLogger(cmd)
		if err != nil {
			return err
		}
		defer log.Close()

		return runPipeline(cmd, pipeline.New(log, build(cfg, newRunner(cmd.OutOrStdout()), log)))
	}
}
