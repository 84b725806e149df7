package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/honeynet/internal/remote"
)

var execCmd = &cobra.Command{
	Use:   "exec [flags] [-- command...]",
	Short: "Run a command on a remote host over SSH",
	Long: `Run a single command on a remote host using password authentication.

The password comes from remote.password in the config file or the
HONEYNET_REMOTE_PASSWORD environment variable. It is never accepted as a
flag. Without a command, remote.command from the configuration is used.`,
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().String("host", "", "remote host (default: remote.host)")
	execCmd.Flags().String("user", "", "remote username (default: remote.username)")
	execCmd.Flags().Int("port", 0, "remote port (default: remote.port)")
	execCmd.Flags().String("known-hosts", "", "known_hosts file used to verify the host key")
	execCmd.Flags().Duration("timeout", 0, "dial and SSH handshake timeout (0 disables)")
}

func runExec(cmd *cobra.Command, args []string) error {
	target := remote.TargetFromConfig(cfg.Remote)

	flags := cmd.Flags()
	if flags.Changed("host") {
		target.Host, _ = flags.GetString("host")
	}
	if flags.Changed("user") {
		target.Username, _ = flags.GetString("user")
	}
	if flags.Changed("port") {
		target.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("known-hosts") {
		target.KnownHosts, _ = flags.GetString("known-hosts")
	}
	if flags.Changed("timeout") {
		target.Timeout, _ = flags.GetDuration("timeout")
	}

	command := cfg.Remote.Command
	if len(args) > 0 {
		command = strings.Join(args, " ")
	}

	log, err := openLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	_, err = remote.NewExecutor(log).Run(cmd.Context(), target, command)
	return err
}
