package tensorwire

import "testing"

// testLogger implements the StdLogger interface and records the text in the
// logs of the given T passed from Test functions.
type testLogger struct {
	t *testing.T
}

func (l *testLogger) Print(v ...interface{}) {
	if l.t != nil {
		l.t.Helper()
		l.t.Log(v...)
	}
}

func (l *testLogger) Printf(format string, v ...interface{}) {
	if l.t != nil {
		l.t.Helper()
		l.t.Logf(format, v...)
	}
}

func (l *testLogger) Println(v ...interface{}) {
	if l.t != nil {
		l.t.Helper()
		l.t.Log(v...)
	}
}

func TestDecodeFailureIsLogged(t *testing.T) {
	saved := Logger
	Logger = &testLogger{t: t}
	defer func() { Logger = saved }()

	err := NewVariableResponse(NewScope(), nil, nil).Parse(NewByteSource([]byte{0x48, 0x01}))
	if err == nil {
		t.Error("expected an unknown-field error")
	}
}
