// Package htmlsanitize strips unsafe HTML from user-authored content
// (event titles, news bodies, report details) before it is stored or
// interpolated into notification messages.
package htmlsanitize

import "github.com/microcosm-cc/bluemonday"

var (
	// ugc keeps basic formatting (p, strong, em, lists, safe links).
	ugc = bluemonday.UGCPolicy()

	// strict strips all markup; used for titles and anything rendered
	// into plain-text notification messages.
	strict = bluemonday.StrictPolicy()
)

// Sanitize cleans body-style content, keeping safe formatting markup.
func Sanitize(s string) string {
	return ugc.Sanitize(s)
}

// PlainText strips all markup, for titles and notification text.
func PlainText(s string) string {
	return strict.Sanitize(s)
}
