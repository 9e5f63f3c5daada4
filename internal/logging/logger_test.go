package logging

import "testing"

func TestDiscardLoggerIsNoop(t *testing.T) {
	// Exercise every method; none should panic or write anywhere.
	Discard.Errorf("x %d", 1)
	Discard.Warnf("x")
	Discard.Infof("x")
	Discard.Debugf("x")
	Discard.Fatalf("x")
}

func TestOrDefault(t *testing.T) {
	if got := OrDefault(nil); got == nil {
		t.Fatalf("OrDefault(nil) returned nil")
	}
	custom := NewDefaultLogger(LevelDebug)
	if got := OrDefault(custom); got != custom {
		t.Fatalf("OrDefault did not return the supplied logger")
	}
}

func TestFatalHandlerInvoked(t *testing.T) {
	l := NewDefaultLogger(LevelError)
	called := false
	l.SetFatalHandler(func(msg string) { called = true })
	l.Fatalf("boom %d", 42)
	if !called {
		t.Fatalf("fatal handler was not invoked")
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		LevelError: "ERROR",
		LevelWarn:  "WARN",
		LevelInfo:  "INFO",
		LevelDebug: "DEBUG",
		Level(99):  "UNKNOWN",
	}
	for lvl, want := range cases {
		if got := lvl.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", lvl, got, want)
		}
	}
}
