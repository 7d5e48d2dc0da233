package probe

import "strings"

var (
	hdrTransfers = []string{"smpte2084", "arib-std-b67", "smpte st 2084", "hlg"}
	hdrPrimaries = []string{"bt2020"}
)

// IsHDR reports whether the video track carries HDR color metadata: a PQ or
// HLG transfer, or BT.2020 primaries. H.264 output maps such sources to SDR.
func (v *VideoTrack) IsHDR() bool {
	if v == nil {
		return false
	}
	transfer := strings.ToLower(v.ColorTransfer)
	primaries := strings.ToLower(v.ColorPrimaries)
	for _, h := range hdrTransfers {
		if strings.Contains(transfer, h) {
			return true
		}
	}
	for _, h := range hdrPrimaries {
		if strings.Contains(primaries, h) {
			return true
		}
	}
	return false
}
