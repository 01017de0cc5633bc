package commands

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// parseHexOrDec parses a flag value as hex (with or without a leading
// "0x") -- CAN ids are conventionally written in hex on the wire but
// accepted either way here for operator convenience.
func parseHexOrDec(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, 32)
}

// expandHome expands a leading "~" in path to the current user's home
// directory, the way the shell's history file path is conventionally
// written in config files.
func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
