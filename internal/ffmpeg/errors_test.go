package ffmpeg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCopyFailure(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   CopyFailure
	}{
		{"dts", "[mpegts @ 0x1] Application provided invalid, non-monotonous DTS to muxer in stream 0: 100 >= 90", CopyFailureTimestamps},
		{"dts case-insensitive", "Non-monotonous DTS in output stream 0:0", CopyFailureTimestamps},
		{"keyframe", "[hls @ 0x1] Keyframe missing at segment boundary", CopyFailureKeyframes},
		{"generic", "Conversion failed!", CopyFailureGeneric},
		{"empty", "", CopyFailureGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCopyFailure(tt.stderr))
		})
	}
}

func TestClassifyCopyFailure_OnlyTail(t *testing.T) {
	old := "non-monotonous DTS early warning\n" + strings.Repeat("noise\n", 20) + "Conversion failed!\n"
	assert.Equal(t, CopyFailureGeneric, ClassifyCopyFailure(old))
}

func TestCopyFailureString(t *testing.T) {
	assert.Equal(t, "non-monotonous DTS", CopyFailureTimestamps.String())
	assert.Equal(t, "keyframe issues", CopyFailureKeyframes.String())
	assert.Equal(t, "ffmpeg error", CopyFailureGeneric.String())
}
