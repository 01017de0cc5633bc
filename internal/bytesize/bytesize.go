// Package bytesize parses the human-readable size that bounds a single
// file-transfer payload (ServerConfig.Storage.MaxFileSize, spec §4.7
// "RequestFileTransfer" / "TransferData" upper bound). Only binary
// (Ki/Mi/Gi/Ti) units are accepted: config files for this server write
// transfer bounds like "64Mi", never decimal "MB" sizes.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a count of bytes that unmarshals from a "<number><unit>"
// string, unit one of "", "B", "Ki", "Mi", "Gi", "Ti" (case-insensitive).
type ByteSize uint64

const (
	B   ByteSize = 1
	KiB ByteSize = 1024 * B
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

var suffixes = []struct {
	unit string
	mult ByteSize
}{
	{"tib", TiB}, {"ti", TiB},
	{"gib", GiB}, {"gi", GiB},
	{"mib", MiB}, {"mi", MiB},
	{"kib", KiB}, {"ki", KiB},
	{"b", B},
}

// ParseByteSize parses s into a ByteSize. A bare number is taken as a
// byte count; otherwise the longest matching unit suffix in suffixes
// is stripped and the remainder parsed as the unit count.
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("bytesize: empty size string")
	}

	lower := strings.ToLower(trimmed)
	for _, suf := range suffixes {
		if !strings.HasSuffix(lower, suf.unit) {
			continue
		}
		numPart := strings.TrimSpace(trimmed[:len(trimmed)-len(suf.unit)])
		n, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return 0, fmt.Errorf("bytesize: invalid size %q: %w", s, err)
		}
		if n < 0 {
			return 0, fmt.Errorf("bytesize: negative size %q", s)
		}
		return ByteSize(n * float64(suf.mult)), nil
	}

	n, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid size %q", s)
	}
	return ByteSize(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize fields
// can be set directly from YAML/mapstructure values.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String renders b using the largest binary unit that keeps the
// mantissa >= 1, matching how transfer-size limits are logged.
func (b ByteSize) String() string {
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2fTiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", uint64(b))
	}
}

// Uint64 returns b as a plain byte count, the form filetransfer.go
// compares requested transfer sizes against.
func (b ByteSize) Uint64() uint64 { return uint64(b) }
