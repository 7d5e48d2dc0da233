package planner

// CalculateScale returns the output frame size for targetHeight that keeps
// the source aspect ratio. A target at or above the source height keeps the
// source size; so does the evened source height, which Plan produces for
// odd-height sources. Odd dimensions are rounded down to even for 4:2:0
// encoding.
func CalculateScale(srcWidth, srcHeight, targetHeight int) Scale {
	w, h := srcWidth, srcHeight
	if targetHeight < srcHeight-srcHeight%2 && srcHeight > 0 {
		h = targetHeight
		w = targetHeight * srcWidth / srcHeight
	}
	return Scale{Width: w - w%2, Height: h - h%2}
}

// NeedsScale reports whether s differs from the source frame size.
func NeedsScale(s Scale, srcWidth, srcHeight int) bool {
	return s.Width != srcWidth || s.Height != srcHeight
}
