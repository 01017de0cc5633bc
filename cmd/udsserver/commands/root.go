// Package commands implements the udsserver CLI, following the root
// command layout of dittofs's cmd/dittofs/commands/root.go and
// cmd/dfsctl/commands/root.go.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "udsserver",
	Short: "udsforge UDS/ISO-TP diagnostic server",
	Long: `udsserver runs a UDS (ISO 14229) diagnostic server over ISO-TP
(ISO 15765-2) on a CAN interface: session control, security access,
data-by-identifier, I/O control, routine control, and file transfer.

Use "udsserver [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/udsforge/config.yaml)")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("udsserver %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
