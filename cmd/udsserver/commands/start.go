package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/udsforge/udsforge/internal/archive"
	"github.com/udsforge/udsforge/internal/audit"
	"github.com/udsforge/udsforge/internal/cansock"
	"github.com/udsforge/udsforge/internal/logger"
	"github.com/udsforge/udsforge/internal/metrics"
	"github.com/udsforge/udsforge/internal/obsapi"
	"github.com/udsforge/udsforge/internal/paramstore"
	"github.com/udsforge/udsforge/internal/security"
	"github.com/udsforge/udsforge/internal/telemetry"
	"github.com/udsforge/udsforge/pkg/isotp"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
	"github.com/udsforge/udsforge/pkg/uds/server/handlers"

	serverconfig "github.com/udsforge/udsforge/internal/config"
)

var (
	flagIface      string
	flagPhysSource string
	flagPhysTarget string
	flagFuncSource string
	flagNodeID     string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the udsforge diagnostic server",
	Long: `Start the udsforge UDS/ISO-TP server bound to a CAN interface.

Examples:
  # Start with a config file
  udsserver start --config /etc/udsforge/server.yaml

  # Override the CAN interface and addressing from the command line
  udsserver start -i can0 -s 0x7E0 -t 0x7E8 -f 0x7DF`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&flagIface, "iface", "i", "", "CAN interface (e.g. can0, vcan0)")
	startCmd.Flags().StringVarP(&flagPhysSource, "phys-source", "s", "", "physical request CAN id (hex), tester -> ECU")
	startCmd.Flags().StringVarP(&flagPhysTarget, "phys-target", "t", "", "physical response CAN id (hex), ECU -> tester")
	startCmd.Flags().StringVarP(&flagFuncSource, "func-source", "f", "", "functional (broadcast) request CAN id (hex)")
	startCmd.Flags().StringVar(&flagNodeID, "node-id", "", "node id (hex) this ECU answers to for node-scoped CommunicationControl")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := serverconfig.LoadServerConfig(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyServerFlagOverrides(cfg)

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
			Enabled:     cfg.Telemetry.Enabled,
			ServiceName: "udsserver",
			Endpoint:    cfg.Telemetry.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("init profiling: %w", err)
		}
		defer func() {
			if err := shutdown(); err != nil {
				logger.Error("profiling shutdown error", "error", err)
			}
		}()
	}

	tracingShutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "udsserver",
		ServiceVersion: Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := tracingShutdown(context.Background()); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
	}()

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
		true,
	)

	m := metrics.New(nil)

	srv := server.New(binding, metricsSink{m: m})
	srv.P2 = cfg.Timing.P2Ms
	srv.P2Star = cfg.Timing.P2StarMs

	store, err := paramstore.Open(cfg.Storage.ParamStorePath)
	if err != nil {
		return fmt.Errorf("open parameter store: %w", err)
	}
	defer store.Close()

	sec := security.NewInstance(security.XORAlgorithm{Secret: []byte(cfg.Security.Secret)}, cfg.Security.SeedSize)

	var auditSvc *audit.Service
	if cfg.Audit.Enabled {
		auditSvc, err = audit.NewService(audit.Config{Secret: cfg.Audit.Secret, Issuer: cfg.Audit.Issuer})
		if err != nil {
			return fmt.Errorf("init audit service: %w", err)
		}
	}

	archiver, err := archive.New(ctx, archive.Config{
		Bucket:         cfg.Archive.Bucket,
		Region:         cfg.Archive.Region,
		Endpoint:       cfg.Archive.Endpoint,
		KeyPrefix:      cfg.Archive.KeyPrefix,
		ForcePathStyle: cfg.Archive.ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("init archiver: %w", err)
	}

	nodeID := uint8(cfg.Isotp.PhysTarget)
	if flagNodeID != "" {
		if v, err := parseHexOrDec(flagNodeID); err == nil {
			nodeID = uint8(v)
		}
	}

	handlers.RegisterSessionControl(srv)
	handlers.RegisterSessionTimeout(srv, sec)
	handlers.RegisterECUReset(srv, func(reset uds.ResetType) {
		logger.Warn("ECUReset fired; process restart is the operator's responsibility", "type", reset)
	})
	handlers.RegisterDataByIdentifier(srv, store)
	handlers.RegisterSecurityAccess(srv, sec, 1, auditSvc, m)
	handlers.RegisterCommunicationControl(srv, nodeID)

	ioReg := handlers.NewIOControlRegistry()
	handlers.RegisterIOControl(srv, ioReg)
	handlers.RegisterIOControlSessionTimeout(srv, ioReg)

	handlers.RegisterRoutineControl(srv, handlers.ConsoleRoutineConfig{
		MinSession:       0,
		MinSecurityLevel: 0,
		BufferSize:       64 * 1024,
	}, sec)

	handlers.RegisterFileTransfer(srv, handlers.FileTransferConfig{
		BaseDir:      cfg.Storage.TransferDir,
		ChunkSize:    4096,
		TransportMTU: 4095,
		MaxFileSize:  cfg.Storage.MaxFileSize,
		Archiver:     archiver,
		Metrics:      m,
	})

	handlers.RegisterTesterPresent(srv)

	var obsServer *http.Server
	if cfg.Obsapi.Enabled {
		router := obsapi.NewRouter(func() []obsapi.SessionView {
			return []obsapi.SessionView{{
				Session:       srv.Session.String(),
				SecurityLevel: srv.SecurityLevel,
			}}
		})
		obsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Obsapi.Port), Handler: router}
		go func() {
			if err := obsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("obsapi server error", "error", err)
			}
		}()
		logger.Info("observability sidecar enabled", "port", cfg.Obsapi.Port)
	}

	go pumpFrames(ctx, sock, binding)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("udsserver is running", "interface", cfg.Isotp.Interface)

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			signal.Stop(sigChan)
			cancel()
			if obsServer != nil {
				_ = obsServer.Shutdown(context.Background())
			}
			logger.Info("udsserver stopped")
			return nil

		case <-ticker.C:
			binding.Poll()
			if payload, channel, ok := binding.TakeReceived(); ok {
				resp := srv.Handle(payload, channel == isotp.ChannelFunctional, cfg.Isotp.Interface)
				if resp != nil {
					if err := binding.Send(resp, false); err != nil {
						logger.Warn("isotp: send response failed", "error", err)
					}
				}
			}
			if resp := srv.PollScheduledReset(); resp != nil {
				if err := binding.Send(resp, false); err != nil {
					logger.Warn("isotp: send scheduled-reset response failed", "error", err)
				}
			}
			srv.PollSessionTimeout()
		}
	}
}

// pumpFrames reads raw CAN frames off sock and feeds them to binding
// until ctx is cancelled (spec §1 "CAN driver integration" out of
// scope: this is the thin external collaborator wiring it in).
func pumpFrames(ctx context.Context, sock *cansock.Socket, binding *isotp.Binding) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
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
}

func applyServerFlagOverrides(cfg *serverconfig.ServerConfig) {
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
