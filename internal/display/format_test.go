package display

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"small bytes", 512, "512 B"},
		{"exactly 1 KiB", 1024, "1.0 KiB"},
		{"1.5 KiB", 1536, "1.5 KiB"},
		{"1 MiB", 1024 * 1024, "1.0 MiB"},
		{"1 GiB", 1024 * 1024 * 1024, "1.0 GiB"},
		{"typical segment set 700 MiB", 734003200, "700.0 MiB"},
		{"4.7 GiB", 5046586572, "4.7 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBytes(tt.bytes))
		})
	}
}

func TestFormatBitrate(t *testing.T) {
	tests := []struct {
		name string
		bps  int64
		want string
	}{
		{"unknown", 0, "unknown"},
		{"audio", 128000, "128 kbps"},
		{"exactly 1 Mbps", 1000000, "1.0 Mbps"},
		{"4K high tier", 18000000, "18.0 Mbps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBitrate(tt.bps))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"seconds", 42 * time.Second, "42s"},
		{"minutes", 3*time.Minute + 5*time.Second, "3m 05s"},
		{"hours", time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
		{"negative clamps", -time.Second, "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.d))
		})
	}
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "2.0x", FormatSpeed(10*time.Minute, 5*time.Minute))
	assert.Equal(t, "-", FormatSpeed(time.Minute, 0))
}

func TestPrintBanner(t *testing.T) {
	var plain, colored bytes.Buffer
	PrintBanner(&plain, "1.2.3", false)
	PrintBanner(&colored, "1.2.3", true)

	assert.Contains(t, plain.String(), "v1.2.3")
	assert.NotContains(t, plain.String(), "\033[")
	assert.Contains(t, colored.String(), bannerColor)
}
