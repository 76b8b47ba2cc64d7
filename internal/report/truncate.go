package report

import "strings"

const (
	// UntitledPlaceholder replaces empty or blank merge request titles.
	UntitledPlaceholder = "Untitled"
	// DefaultMaxTitleLength is the display budget for a merge request title.
	DefaultMaxTitleLength = 50

	ellipsis = "..."
)

// TruncateTitle bounds a title to maxLength runes. Longer titles keep their
// first maxLength-3 runes followed by "...".
func TruncateTitle(title string, maxLength int) string {
	if strings.TrimSpace(title) == "" {
		return UntitledPlaceholder
	}

	runes := []rune(title)
	if len(runes) <= maxLength {
		return title
	}
	if maxLength <= len(ellipsis) {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-len(ellipsis)]) + ellipsis
}
