package display

import (
	"fmt"
	"io"
)

const (
	bannerColor = "\033[1;96m"
	reset       = "\033[0m"
)

// PrintBanner writes the ASCII art banner and version line to w, in cyan
// when color is true.
func PrintBanner(w io.Writer, version string, color bool) {
	if color {
		fmt.Fprint(w, bannerColor)
	}
	fmt.Fprint(w, ` _     _     _           _     _
| |__ | |___| | __ _  __| | __| | ___ _ __
| '_ \| / __| |/ _`+"`"+` |/ _`+"`"+` |/ _`+"`"+` |/ _ \ '__|
| | | | \__ \ | (_| | (_| | (_| |  __/ |
|_| |_|_|___/_|\__,_|\__,_|\__,_|\___|_|
`)
	if color {
		fmt.Fprint(w, reset)
	}
	fmt.Fprintf(w, "  adaptive HLS packager v%s\n\n", version)
}
