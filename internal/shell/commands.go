package shell

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/client"
)

// defaultCommands is the interactive command registry (spec §6
// "Interactive shell command set"). Anything not listed here is
// forwarded verbatim to the remote console via "rexec".
func defaultCommands() map[string]commandFunc {
	return map[string]commandFunc{
		"help":    cmdHelp,
		"exit":    cmdExit,
		"quit":    cmdExit,
		"status":  cmdStatus,
		"session": cmdSession,
		"auth":    cmdAuth,
		"er":      cmdECUReset,
		"rdbi":    cmdRDBI,
		"wdbi":    cmdWDBI,
		"io":      cmdIO,
		"cc":      cmdCommControl,
		"rexec":   func(s *Shell, args []string) error { return cmdRexec(s, args) },
		"cd":      cmdCd,
		"lls":     cmdLls,
		"sy":      cmdUpload,
		"ry":      cmdDownload,
	}
}

// registerResponseHandlers wires the client's response registry (spec
// §4.7) for the one case a bare Transaction return value can't serve:
// feeding the remote_cmd_cache/remote_file_cache completion caches from
// whatever the remote console printed back.
func (s *Shell) registerResponseHandlers() {
	s.client.Registry().Register(uds.SIDRoutineControl.ResponseSID(), func(payload []byte) {
		if len(payload) <= 4 {
			return
		}
		for _, tok := range strings.Fields(string(payload[4:])) {
			s.cmdCache.Add(tok)
			s.fileCache.Add(tok)
		}
	})
}

func cmdHelp(s *Shell, _ []string) error {
	fmt.Fprintln(s.out, "commands: help exit status session auth er rdbi wdbi io cc rexec cd lls sy ry")
	fmt.Fprintln(s.out, "anything else is sent to the remote console verbatim")
	return nil
}

// cmdStatus prints the shell's connection/heartbeat state as a table
// (spec §4.8 "Heartbeat / liveness monitor"; SUPPLEMENTED FEATURES #4),
// standing alone rather than riding along with "session"/"auth" output.
func cmdStatus(s *Shell, _ []string) error {
	connected := "yes"
	if !s.heartbeat.Connected() {
		connected = "no"
	}

	printStatusTable(s.out, [][2]string{
		{"connected", connected},
		{"failures", strconv.Itoa(s.heartbeat.Failures())},
		{"last_nrc", s.client.LastNRC().String()},
		{"cwd", s.cwd},
	})
	return nil
}

func cmdExit(s *Shell, _ []string) error {
	s.quitOnce = true
	return nil
}

func cmdSession(s *Shell, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: session <subfn>")
	}
	subfn, err := parseUint8(args[0])
	if err != nil {
		return err
	}

	ok, err := s.client.Transaction(func() error {
		return s.client.SendDiagnosticSessionControl(uds.SessionType(subfn))
	}, "session", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}

	printStatusTable(s.out, [][2]string{
		{"session", uds.SessionType(subfn).String()},
		{"nrc", s.client.LastNRC().String()},
	})
	return nil
}

func cmdAuth(s *Shell, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: auth <odd_level>")
	}
	level, err := parseUint8(args[0])
	if err != nil {
		return err
	}

	ok, err := s.client.Transaction(func() error {
		return s.client.SendSecurityAccessRequestSeed(level)
	}, "auth-seed", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}

	resp := s.client.LastResponse()
	if len(resp) < 2 {
		return fmt.Errorf("auth: short seed response")
	}
	seed := resp[2:]

	if isZeroSeed(seed) {
		fmt.Fprintln(s.out, "auth: already unlocked at this level")
		return nil
	}

	key := s.cfg.Algorithm.ComputeKey(level, seed)
	ok, err = s.client.Transaction(func() error {
		return s.client.SendSecurityAccessSendKey(level, key)
	}, "auth-key", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}

	printStatusTable(s.out, [][2]string{
		{"level", strconv.Itoa(int(level))},
		{"nrc", s.client.LastNRC().String()},
	})
	return nil
}

func cmdECUReset(s *Shell, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: er <type>")
	}
	kind, err := parseUint8(args[0])
	if err != nil {
		return err
	}

	proceed, err := confirm(fmt.Sprintf("reset ECU (type=%d)?", kind), false)
	if err != nil {
		return err
	}
	if !proceed {
		fmt.Fprintln(s.out, "aborted")
		return nil
	}

	ok, err := s.client.Transaction(func() error {
		return s.client.SendECUReset(uds.ResetType(kind))
	}, "er", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}
	fmt.Fprintln(s.out, "reset accepted:", s.client.LastNRC())
	return nil
}

func cmdRDBI(s *Shell, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rdbi <did>")
	}
	did, err := parseUint16(args[0])
	if err != nil {
		return err
	}

	ok, err := s.client.Transaction(func() error {
		return s.client.SendReadDataByIdentifier(did)
	}, "rdbi", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}

	resp := s.client.LastResponse()
	if len(resp) < 3 {
		return fmt.Errorf("rdbi: short response")
	}
	fmt.Fprintf(s.out, "did=%#04x data=%s\n", did, hex.EncodeToString(resp[3:]))
	return nil
}

func cmdWDBI(s *Shell, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: wdbi <did> <b0> [b1...]")
	}
	did, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	data := make([]byte, 0, len(args)-1)
	for _, a := range args[1:] {
		b, err := parseUint8(a)
		if err != nil {
			return err
		}
		data = append(data, b)
	}

	ok, err := s.client.Transaction(func() error {
		return s.client.SendWriteDataByIdentifier(did, data)
	}, "wdbi", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}
	fmt.Fprintln(s.out, "write ok")
	return nil
}

func cmdIO(s *Shell, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: io <did> <param> [data...]")
	}
	did, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	param, err := parseUint8(args[1])
	if err != nil {
		return err
	}
	data := make([]byte, 0, len(args)-2)
	for _, a := range args[2:] {
		b, err := parseUint8(a)
		if err != nil {
			return err
		}
		data = append(data, b)
	}

	ok, err := s.client.Transaction(func() error {
		return s.client.SendIOControlByIdentifier(did, uds.IOControlAction(param), data)
	}, "io", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}
	fmt.Fprintln(s.out, "io ok:", hex.EncodeToString(s.client.LastResponse()))
	return nil
}

func cmdCommControl(s *Shell, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: cc <ctrl> <scope> [nodeId]")
	}
	ctrl, err := parseUint8(args[0])
	if err != nil {
		return err
	}
	scope, err := parseUint8(args[1])
	if err != nil {
		return err
	}

	var nodeID *uint16
	if len(args) >= 3 {
		id, err := parseUint16(args[2])
		if err != nil {
			return err
		}
		nodeID = &id
	}

	ok, err := s.client.Transaction(func() error {
		return s.client.SendCommunicationControl(client.CommControlType(ctrl), client.CommControlScope(scope), nodeID)
	}, "cc", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}
	fmt.Fprintln(s.out, "communication control ok")
	return nil
}

// cmdRexec runs fields[1:] (or, when forwarded for an unknown top-level
// command, the whole line) as a command on the remote console via
// RoutineControl rid 0xF000 (spec §4.4 "0x31" remote-console feature).
func cmdRexec(s *Shell, fields []string) error {
	var option []byte
	if len(fields) > 0 && fields[0] == "rexec" {
		option = []byte(strings.Join(fields[1:], " "))
	} else {
		option = []byte(strings.Join(fields, " "))
	}
	if len(option) == 0 {
		return fmt.Errorf("usage: rexec <cmd...>")
	}

	ok, err := s.client.Transaction(func() error {
		return s.client.SendRoutineControl(client.RoutineStart, s.cfg.ConsoleRoutineID, option)
	}, "rexec", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}

	resp := s.client.LastResponse()
	if len(resp) > 4 {
		fmt.Fprintln(s.out, string(resp[4:]))
	}
	return nil
}

func cmdCd(s *Shell, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cd <path>")
	}
	target := args[0]
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.cwd, target)
	}
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("cd: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cd: %s: not a directory", target)
	}
	s.cwd = filepath.Clean(target)
	return nil
}

func cmdLls(s *Shell, _ []string) error {
	entries, err := os.ReadDir(s.cwd)
	if err != nil {
		return fmt.Errorf("lls: %w", err)
	}
	for _, e := range entries {
		fmt.Fprintln(s.out, e.Name())
	}
	return nil
}

// cmdUpload implements "sy <local_path>": upload a local file to the
// remote server via RequestFileTransfer/TransferData/RequestTransferExit
// (spec §4.4 "0x36/0x37/0x38", §7 "file transfer").
func cmdUpload(s *Shell, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sy <local_path>")
	}
	localPath := args[0]
	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(s.cwd, localPath)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("sy: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("sy: %w", err)
	}

	remoteName := filepath.Base(localPath)
	ok, err := s.client.Transaction(func() error {
		return s.client.SendRequestFileTransfer(uds.TransferAddFile, remoteName, 0x00, uint64(info.Size()))
	}, "sy-open", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}

	blockLen := negotiatedBlockLen(s.client.LastResponse())
	reader := bufio.NewReader(f)
	checksum := crc32.NewIEEE()
	buf := make([]byte, blockLen)
	var seq uint8 = 1

	for {
		n, readErr := io.ReadFull(reader, buf)
		if n > 0 {
			checksum.Write(buf[:n])
			ok, err = s.client.Transaction(func() error {
				return s.client.SendTransferData(seq, buf[:n])
			}, "sy-data", s.cfg.DefaultTimeoutMs)
			if !ok {
				return err
			}
			seq++
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("sy: %w", readErr)
		}
	}

	sum := make([]byte, 4)
	crc := checksum.Sum32()
	sum[0], sum[1], sum[2], sum[3] = byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc)

	ok, err = s.client.Transaction(func() error {
		return s.client.SendRequestTransferExit(sum)
	}, "sy-exit", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}

	s.fileCache.Add(remoteName)
	fmt.Fprintf(s.out, "uploaded %s (%d bytes, crc32=%08x)\n", remoteName, info.Size(), crc)
	return nil
}

// cmdDownload implements "ry <remote_path>": download a remote file.
func cmdDownload(s *Shell, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: ry <remote_path>")
	}
	remotePath := args[0]

	ok, err := s.client.Transaction(func() error {
		return s.client.SendRequestFileTransfer(uds.TransferReadFile, remotePath, 0x00, 0)
	}, "ry-open", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}
	blockLen := negotiatedBlockLen(s.client.LastResponse())

	localPath := filepath.Join(s.cwd, filepath.Base(remotePath))
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("ry: %w", err)
	}
	defer out.Close()

	checksum := crc32.NewIEEE()
	var seq uint8 = 1
	for {
		ok, err = s.client.Transaction(func() error {
			return s.client.SendTransferData(seq, nil)
		}, "ry-data", s.cfg.DefaultTimeoutMs)
		if !ok {
			return err
		}
		resp := s.client.LastResponse()
		if len(resp) <= 2 {
			break
		}
		chunk := resp[2:]
		checksum.Write(chunk)
		if _, err := out.Write(chunk); err != nil {
			return fmt.Errorf("ry: %w", err)
		}
		if len(chunk) < blockLen {
			break
		}
		seq++
	}

	ok, err = s.client.Transaction(func() error {
		return s.client.SendRequestTransferExit(nil)
	}, "ry-exit", s.cfg.DefaultTimeoutMs)
	if !ok {
		return err
	}

	s.fileCache.Add(filepath.Base(remotePath))
	fmt.Fprintf(s.out, "downloaded %s (crc32=%08x)\n", localPath, checksum.Sum32())
	return nil
}

// negotiatedBlockLen reads the max-block-length field off a
// RequestFileTransfer positive response, defaulting to 512 if absent.
func negotiatedBlockLen(resp []byte) int {
	const defaultLen = 512
	if len(resp) < 4 {
		return defaultLen
	}
	lenFormat := resp[2]
	if int(lenFormat) > len(resp)-3 {
		return defaultLen
	}
	n := 0
	for _, b := range resp[3 : 3+lenFormat] {
		n = n<<8 | int(b)
	}
	if n <= 0 {
		return defaultLen
	}
	return n
}

func isZeroSeed(seed []byte) bool {
	for _, b := range seed {
		if b != 0 {
			return false
		}
	}
	return true
}

func parseUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), hexOrDec(s), 8)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return uint8(v), nil
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), hexOrDec(s), 16)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return uint16(v), nil
}

func hexOrDec(s string) int {
	if strings.HasPrefix(s, "0x") {
		return 16
	}
	return 10
}
