package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain bytes", "1024", 1024, false},
		{"bytes suffix", "1024B", 1024, false},
		{"kibibytes Ki", "1Ki", KiB, false},
		{"kibibytes KiB", "1KiB", KiB, false},
		{"mebibytes Mi", "64Mi", 64 * MiB, false},
		{"gibibytes Gi", "1Gi", GiB, false},
		{"tebibytes Ti", "1Ti", TiB, false},
		{"case insensitive", "1gi", GiB, false},
		{"leading/trailing space", "  64Mi  ", 64 * MiB, false},
		{"fractional mebibytes", "1.5Mi", ByteSize(1.5 * float64(MiB)), false},
		{"empty string", "", 0, true},
		{"whitespace only", "   ", 0, true},
		{"invalid unit", "1Xi", 0, true},
		{"negative number", "-1Gi", 0, true},
		{"garbage", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestByteSizeUnmarshalText(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("64Mi")))
	assert.Equal(t, 64*MiB, b)

	var bad ByteSize
	assert.Error(t, bad.UnmarshalText([]byte("not-a-size")))
}

func TestByteSizeString(t *testing.T) {
	tests := []struct {
		input ByteSize
		want  string
	}{
		{512, "512B"},
		{2 * KiB, "2.00KiB"},
		{64 * MiB, "64.00MiB"},
		{1 * GiB, "1.00GiB"},
		{2 * TiB, "2.00TiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.input.String())
	}
}

func TestByteSizeUint64(t *testing.T) {
	assert.Equal(t, uint64(64*MiB), (64 * MiB).Uint64())
}
