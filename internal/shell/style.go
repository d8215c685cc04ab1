package shell

import (
	"io"

	"github.com/muesli/termenv"

	"mychat/internal/services"
)

const (
	minWrapWidth = 40
	maxWrapWidth = 120
	// wrapMargin leaves room for the Glamour document margins.
	wrapMargin = 4
)

// DetectStyle picks a Glamour style for w: "notty" when w is not a color
// terminal, otherwise "dark" or "light" from the terminal background.
func DetectStyle(w io.Writer) string {
	out := termenv.NewOutput(w)
	if out.Profile == termenv.Ascii {
		return "notty"
	}
	if out.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

// WrapWidth returns the markdown wrap width for a terminal with the given
// number of columns. Unknown widths get services.DefaultWordWrap.
func WrapWidth(columns int) int {
	if columns <= 0 {
		return services.DefaultWordWrap
	}
	width := columns - wrapMargin
	if width < minWrapWidth {
		return minWrapWidth
	}
	if width > maxWrapWidth {
		return maxWrapWidth
	}
	return width
}
