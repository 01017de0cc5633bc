// Package commands implements the udsclient CLI: a cobra root command
// plus the "shell" subcommand that starts the interactive tester
// session (spec §6 "CLI surface (client)").
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "udsclient",
	Short: "udsforge UDS/ISO-TP diagnostic tester",
	Long: `udsclient is an interactive UDS (ISO 14229) tester over ISO-TP
(ISO 15765-2): session control, security access, data read/write,
I/O control, routine control (including a remote-console feature), and
file transfer, driven from a command-line shell.

Use "udsclient [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/udsforge/config.yaml)")
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(versionCmd)
}

func GetConfigFile() string {
	return cfgFile
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("udsclient %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
