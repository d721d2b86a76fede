package logger

import "testing"

func TestNamedPrefix(t *testing.T) {
	l, ok := Named("judge").(*slogLogger)
	if !ok || l.prefix != "[judge] " {
		t.Errorf("Named = %#v", l)
	}
	if d := Default().(*slogLogger); d.prefix != "" {
		t.Errorf("Default prefix = %q", d.prefix)
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(nopLogger); !ok {
		t.Error("OrNop(nil) should be Nop")
	}
	l := Named("x")
	if OrNop(l) != l {
		t.Error("OrNop should keep a non-nil logger")
	}
}
