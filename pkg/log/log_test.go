package log

import "testing"

func TestNew(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		logger, err := New("info", format)
		if err != nil {
			t.Fatalf("format %q: %v", format, err)
		}
		logger.Debug("suppressed at info")
		_ = logger.Sync()
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New("chatty", "json"); err == nil {
		t.Fatalf("want error for bad level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatalf("want error for bad format")
	}
}
