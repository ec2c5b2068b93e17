package watcher

import (
	"testing"
	"time"
)

func TestShouldIgnore_Patterns(t *testing.T) {
	patterns := []string{"node_modules", ".git", "__pycache__"}
	cases := map[string]bool{
		"/repo/node_modules/x.py": true,
		"/repo/.git/HEAD":         true,
		"/repo/src/__pycache__/a.pyc": true,
		"/repo/src/main.py":       false,
	}
	for path, want := range cases {
		if got := shouldIgnore(path, patterns); got != want {
			t.Errorf("shouldIgnore(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestIsSupportedExtension(t *testing.T) {
	m := map[string]string{".py": "python"}
	if !isSupportedExtension(".py", m) {
		t.Error("expected .py to be supported")
	}
	if isSupportedExtension(".txt", m) {
		t.Error("expected .txt to be unsupported")
	}
}

func TestDebouncer_FirstEventAllowed(t *testing.T) {
	d := newDebouncer(500 * time.Millisecond)
	if !d.allow("/repo/a.py", false) {
		t.Error("first event for a path should be allowed")
	}
}

func TestDebouncer_BurstCollapsesToOne(t *testing.T) {
	now := time.Now()
	d := newDebouncer(500 * time.Millisecond)
	d.now = func() time.Time { return now }

	if !d.allow("/repo/a.py", false) {
		t.Fatal("first event should be allowed")
	}
	now = now.Add(100 * time.Millisecond)
	if d.allow("/repo/a.py", false) {
		t.Error("second event within window should be suppressed")
	}
	now = now.Add(100 * time.Millisecond)
	if d.allow("/repo/a.py", false) {
		t.Error("third event within window should be suppressed")
	}
	now = now.Add(600 * time.Millisecond)
	if !d.allow("/repo/a.py", false) {
		t.Error("event after a full quiet window should be allowed")
	}
}

func TestDebouncer_DeleteBypassesWindow(t *testing.T) {
	d := newDebouncer(500 * time.Millisecond)
	d.allow("/repo/a.py", false)
	if !d.allow("/repo/a.py", true) {
		t.Error("delete events should always be allowed")
	}
	if !d.allow("/repo/a.py", false) {
		t.Error("event right after a delete should be allowed since state was cleared")
	}
}
