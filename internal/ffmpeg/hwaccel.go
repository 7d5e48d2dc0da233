package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/backmassage/hlsladder/internal/config"
)

// hwPriority is the order in which detected hardware encoders are preferred.
var hwPriority = []struct {
	accel   config.HWAccel
	encoder string
}{
	{config.AccelNVENC, "h264_nvenc"},
	{config.AccelQSV, "h264_qsv"},
	{config.AccelVideoToolbox, "h264_videotoolbox"},
	{config.AccelAMF, "h264_amf"},
	{config.AccelVAAPI, "h264_vaapi"},
}

// ParseEncoders returns the hardware backends whose H.264 encoder appears in
// `ffmpeg -encoders` output, in priority order.
func ParseEncoders(output string) []config.HWAccel {
	var found []config.HWAccel
	for _, hw := range hwPriority {
		if strings.Contains(output, hw.encoder) {
			found = append(found, hw.accel)
		}
	}
	return found
}

// HasEncoder reports whether name appears as an encoder in `ffmpeg -encoders` output.
func HasEncoder(output, name string) bool {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// ErrEncoderUnavailable means the requested backend's encoder is not
// compiled into ffmpeg.
var ErrEncoderUnavailable = errors.New("video encoder not available in ffmpeg")

// ListEncoders returns the raw `ffmpeg -encoders` output.
func ListEncoders(ctx context.Context, r Runner, b Builder) (string, error) {
	res := r.Run(ctx, b.EncodersArgs())
	if !res.OK() {
		return "", fmt.Errorf("list encoders: %w", errOrExit(res))
	}
	return res.Stdout, nil
}

// DetectEncoders runs `ffmpeg -encoders` and returns the available hardware
// backends in priority order.
func DetectEncoders(ctx context.Context, r Runner, b Builder) ([]config.HWAccel, error) {
	out, err := ListEncoders(ctx, r, b)
	if err != nil {
		return nil, err
	}
	return ParseEncoders(out), nil
}

// ResolveAccel picks the backend to use given `ffmpeg -encoders` output.
// AccelAuto selects the highest-priority hardware encoder, or software when
// none is present. An explicit choice must have its encoder listed.
func ResolveAccel(encoders string, want config.HWAccel) (config.HWAccel, error) {
	if want == config.AccelAuto {
		if found := ParseEncoders(encoders); len(found) > 0 {
			return found[0], nil
		}
		return config.AccelNone, nil
	}
	name := Builder{Accel: want}.EncoderName()
	if !HasEncoder(encoders, name) {
		return want, fmt.Errorf("%w: %s", ErrEncoderUnavailable, name)
	}
	return want, nil
}

func errOrExit(res ExecResult) error {
	if res.Err != nil {
		return res.Err
	}
	return fmt.Errorf("exit status %d", res.ExitCode)
}
