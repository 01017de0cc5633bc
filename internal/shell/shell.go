// Package shell implements the interactive client shell: the
// single-threaded cooperative loop that owns the UDS client core, the
// heartbeat monitor, and the command/response registries (spec §4.8,
// §5 "Client").
package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/udsforge/udsforge/internal/heartbeat"
	"github.com/udsforge/udsforge/internal/logger"
	"github.com/udsforge/udsforge/internal/security"
	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds/client"
)

// ExitCode is the loop's termination reason (spec §4.8 "Exit
// conditions").
type ExitCode int

const (
	ExitUser    ExitCode = 0
	ExitTimeout ExitCode = -1
)

// tickInterval is how often the loop services Poll/heartbeat while
// waiting for input (spec §5 "Client" "20 ms select/readiness").
const tickInterval = 20 * time.Millisecond

// heartbeatInterval is how often the shell sends a TesterPresent to feed
// the liveness monitor (spec §4.8 "Heartbeat").
const heartbeatInterval = 2 * time.Second

// Config configures a Shell.
type Config struct {
	Prompt           string
	HistoryPath      string
	HistoryMaxLines  int
	DefaultTimeoutMs int
	ConsoleRoutineID uint16
	Algorithm        security.Algorithm
	SeedToKeyLevel   bool // reserved for future multi-instance auth flows
	Out              io.Writer
	In               io.Reader
}

// Shell is the interactive client collaborator described by spec §4.8:
// it owns a non-blocking input source, a command registry distinct from
// the client's response registry, and the heartbeat timer.
type Shell struct {
	client    *client.Client
	heartbeat *heartbeat.Monitor
	cfg       Config

	out io.Writer
	cwd string

	history   *History
	cmdCache  *boundedSet
	fileCache *boundedSet

	commands map[string]commandFunc

	lines    chan string
	quitOnce bool
	lastBeat time.Time
}

type commandFunc func(s *Shell, args []string) error

// New constructs a Shell bound to c. When the heartbeat monitor trips,
// its disconnect callback sets the quit flag and Run returns ExitTimeout
// (spec §4.6).
func New(c *client.Client, cfg Config) (*Shell, error) {
	if cfg.Prompt == "" {
		cfg.Prompt = "uds"
	}
	if cfg.DefaultTimeoutMs == 0 {
		cfg.DefaultTimeoutMs = client.DefaultTimeoutMs
	}
	if cfg.ConsoleRoutineID == 0 {
		cfg.ConsoleRoutineID = 0xF000
	}
	if cfg.Algorithm == nil {
		cfg.Algorithm = security.XORAlgorithm{Secret: []byte("udsforge-default-demo-secret")}
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.In == nil {
		cfg.In = os.Stdin
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	hist, err := LoadHistory(cfg.HistoryPath, cfg.HistoryMaxLines)
	if err != nil {
		return nil, err
	}

	s := &Shell{
		client:    c,
		cfg:       cfg,
		out:       cfg.Out,
		cwd:       cwd,
		history:   hist,
		cmdCache:  newBoundedSet(256),
		fileCache: newBoundedSet(256),
		lines:     make(chan string, 1),
	}

	s.heartbeat = heartbeat.New(heartbeat.DefaultThreshold, func() {
		s.quitOnce = true
	})

	s.commands = defaultCommands()
	s.registerResponseHandlers()
	return s, nil
}

// Run drives the shell loop until the user quits or the heartbeat
// monitor fires the disconnect callback (spec §4.8 "Exit conditions").
func (s *Shell) Run() ExitCode {
	scanner := bufio.NewScanner(s.cfg.In)
	go func() {
		for scanner.Scan() {
			s.lines <- scanner.Text()
		}
		close(s.lines)
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	s.printPrompt()
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return ExitUser
			}
			s.client.Poll()
			if err := s.dispatch(line); err != nil {
				fmt.Fprintln(s.out, "error:", err)
			}
			if s.quitOnce {
				// Only the "exit"/"quit" commands set quitOnce here; the
				// heartbeat disconnect fires from the ticker branch.
				return ExitUser
			}
			s.printPrompt()

		case <-ticker.C:
			s.client.Poll()
			s.beatIfDue()
			if s.quitOnce {
				return ExitTimeout
			}
		}
	}
}

// beatIfDue sends a TesterPresent on the configured cadence and feeds
// the result into the heartbeat monitor (spec §4.8 "Heartbeat / liveness
// monitor" increment/clear sources). The request goes out without the
// suppress-positive-response bit and the shell waits for the reply, so
// each beat is a full transaction.
func (s *Shell) beatIfDue() {
	if time.Since(s.lastBeat) < heartbeatInterval {
		return
	}
	s.lastBeat = time.Now()

	ok, _ := s.client.Transaction(func() error {
		return s.client.SendTesterPresent()
	}, "heartbeat", s.cfg.DefaultTimeoutMs)

	switch {
	case ok:
		s.heartbeat.Clear(heartbeat.ClearPositiveResponse)
	case s.client.LastNRC() == uerr.NRCNonNRCError:
		s.heartbeat.Increment(heartbeat.IncrementTransportErr)
	case s.client.LastNRC() != uerr.NRCNone:
		s.heartbeat.Increment(heartbeat.IncrementNegativeResponse)
	default:
		s.heartbeat.Increment(heartbeat.IncrementTimeout)
	}
}

func (s *Shell) printPrompt() {
	fmt.Fprintf(s.out, "%s:%s> ", s.cfg.Prompt, s.cwd)
}

func (s *Shell) dispatch(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if err := s.history.Append(line); err != nil {
		logger.Warn("shell: append history failed", "error", err)
	}

	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	if cmd, ok := s.commands[name]; ok {
		return cmd(s, args)
	}

	// Unknown commands are forwarded to the remote console verbatim
	// (spec §6 "Interactive shell command set").
	return cmdRexec(s, fields)
}
