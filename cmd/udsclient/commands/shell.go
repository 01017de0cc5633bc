package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/udsforge/udsforge/internal/cansock"
	clientconfig "github.com/udsforge/udsforge/internal/config"
	"github.com/udsforge/udsforge/internal/logger"
	"github.com/udsforge/udsforge/internal/security"
	"github.com/udsforge/udsforge/internal/shell"
	"github.com/udsforge/udsforge/pkg/isotp"
	"github.com/udsforge/udsforge/pkg/uds/client"
)

var (
	flagIface      string
	flagPhysSource string
	flagPhysTarget string
	flagFuncSource string
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive diagnostic shell",
	Long: `shell connects to a UDS server over ISO-TP/CAN and drops into an
interactive tester session.

Examples:
  udsclient shell -i can0 -s 0x7E0 -t 0x7E8 -f 0x7DF
  udsclient shell --config ~/.config/udsforge/client.yaml`,
	RunE: runShell,
}

func init() {
	shellCmd.Flags().StringVarP(&flagIface, "iface", "i", "", "CAN interface (e.g. can0, vcan0)")
	shellCmd.Flags().StringVarP(&flagPhysSource, "phys-source", "s", "", "physical request CAN id (hex), tester -> ECU")
	shellCmd.Flags().StringVarP(&flagPhysTarget, "phys-target", "t", "", "physical response CAN id (hex), ECU -> tester")
	shellCmd.Flags().StringVarP(&flagFuncSource, "func-source", "f", "", "functional (broadcast) request CAN id (hex)")
}

func runShell(cmd *cobra.Command, args []string) error {
	cfg, err := clientconfig.LoadClientConfig(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyClientFlagOverrides(cfg)

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	sock, err := cansock.Open(cfg.Isotp.Interface)
	if err != nil {
		return fmt.Errorf("open CAN interface %q: %w", cfg.Isotp.Interface, err)
	}
	defer sock.Close()

	binding := isotp.NewBinding(
		isotp.AddressSet{
			Interface:  cfg.Isotp.Interface,
			PhysSource: cfg.Isotp.PhysSource,
			PhysTarget: cfg.Isotp.PhysTarget,
			FuncSource: cfg.Isotp.FuncSource,
		},
		isotp.FlowControlParams{BlockSize: cfg.Isotp.BlockSize, STmin: cfg.Isotp.STmin},
		sock,
		false,
	)

	c := client.New(binding, nil)

	go pumpClientFrames(cmd, sock, binding)

	sh, err := shell.New(c, shell.Config{
		Prompt:           "uds",
		HistoryPath:      expandHome(cfg.History.Path),
		HistoryMaxLines:  cfg.History.MaxEntries,
		DefaultTimeoutMs: cfg.DefaultTimeoutMs,
		Algorithm:        security.XORAlgorithm{Secret: []byte(cfg.Secret)},
		Out:              os.Stdout,
		In:               os.Stdin,
	})
	if err != nil {
		return fmt.Errorf("start shell: %w", err)
	}

	code := sh.Run()
	os.Exit(int(code))
	return nil
}

func pumpClientFrames(cmd *cobra.Command, sock *cansock.Socket, binding *isotp.Binding) {
	for {
		id, data, ok, err := sock.ReadFrame()
		if err != nil {
			logger.Warn("cansock: read error", "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := binding.Deliver(id, data); err != nil {
			logger.Warn("isotp: deliver error", "error", err)
		}
	}
}

func applyClientFlagOverrides(cfg *clientconfig.ClientConfig) {
	if flagIface != "" {
		cfg.Isotp.Interface = flagIface
	}
	if flagPhysSource != "" {
		if v, err := parseHexOrDec(flagPhysSource); err == nil {
			cfg.Isotp.PhysSource = uint32(v)
		}
	}
	if flagPhysTarget != "" {
		if v, err := parseHexOrDec(flagPhysTarget); err == nil {
			cfg.Isotp.PhysTarget = uint32(v)
		}
	}
	if flagFuncSource != "" {
		if v, err := parseHexOrDec(flagFuncSource); err == nil {
			cfg.Isotp.FuncSource = uint32(v)
		}
	}
}
