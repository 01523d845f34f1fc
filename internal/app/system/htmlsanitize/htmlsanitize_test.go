package htmlsanitize_test

import (
	"testing"

	"github.com/jmestre/hearth/internal/app/system/htmlsanitize"
)

func TestSanitize_Empty(t *testing.T) {
	if got := htmlsanitize.Sanitize(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestSanitize_PlainTextUnchanged(t *testing.T) {
	if got := htmlsanitize.Sanitize("Block party on Saturday!"); got != "Block party on Saturday!" {
		t.Errorf("expected plain text unchanged, got %q", got)
	}
}

func TestSanitize_KeepsSafeHTML(t *testing.T) {
	input := "<p><strong>Bold</strong> and <em>italic</em></p>"
	if got := htmlsanitize.Sanitize(input); got != input {
		t.Errorf("expected safe HTML preserved, got %q", got)
	}
}

func TestSanitize_RemovesScript(t *testing.T) {
	input := "<p>Hello</p><script>alert('xss')</script>"
	if got := htmlsanitize.Sanitize(input); got != "<p>Hello</p>" {
		t.Errorf("expected script removed, got %q", got)
	}
}

func TestPlainText_StripsAllMarkup(t *testing.T) {
	input := "<p>Garage <strong>sale</strong></p>"
	if got := htmlsanitize.PlainText(input); got != "Garage sale" {
		t.Errorf("expected all markup stripped, got %q", got)
	}
}
