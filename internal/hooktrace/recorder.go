// Package hooktrace records hook activity as JSON lines and summarizes
// recorded traces.
//
// Each line is one event:
//
//	{"seq":3,"session":"…","hook":"emit","event":"tap","tap":"Writer","stage":0,"kind":"sync","time":"…"}
//
// Events are "register", "call", "tap", "error", "result" and "done".
package hooktrace

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/tidwall/sjson"

	"github.com/dshills/tapline/internal/hook"
)

// Event names.
const (
	EventRegister = "register"
	EventCall     = "call"
	EventTap      = "tap"
	EventError    = "error"
	EventResult   = "result"
	EventDone     = "done"
)

// ErrRecorderClosed is returned when writing to a closed recorder.
var ErrRecorderClosed = errors.New("recorder closed")

// Recorder writes hook events to w, one JSON object per line.
// It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	w       io.Writer
	session string
	seq     int64
	closed  bool
	err     error
	now     func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSession tags every event with a session identifier.
func WithSession(id string) RecorderOption {
	return func(r *Recorder) {
		r.session = id
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w io.Writer, opts ...RecorderOption) *Recorder {
	r := &Recorder{w: w, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Field is an extra key/value written with an event. Keys use sjson path
// syntax.
type Field struct {
	Key   string
	Value any
}

// Record writes one event. The first write error is sticky and returned by
// every later call and by Err.
func (r *Recorder) Record(hookName, event string, fields ...Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}
	if r.err != nil {
		return r.err
	}

	r.seq++
	line := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err == nil {
			line, err = sjson.SetBytes(line, path, value)
		}
	}
	set("seq", r.seq)
	if r.session != "" {
		set("session", r.session)
	}
	set("hook", hookName)
	set("event", event)
	for _, f := range fields {
		set(f.Key, f.Value)
	}
	set("time", r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}

	line = append(line, '\n')
	if _, err := r.w.Write(line); err != nil {
		r.err = err
		return err
	}
	return nil
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close stops recording. It closes the writer if it is an io.Closer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if c, ok := r.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Interceptor returns an interceptor that records the named hook's events.
// Recording errors are kept on the recorder and never fail the hook.
func Interceptor[T, R any](r *Recorder, hookName string) hook.Interceptor[T, R] {
	tapFields := func(t hook.Tap[T, R]) []Field {
		return []Field{
			{Key: "tap", Value: t.Name},
			{Key: "stage", Value: t.Stage},
			{Key: "kind", Value: t.Kind.String()},
		}
	}
	return hook.Interceptor[T, R]{
		Name: "hooktrace",
		Register: func(t hook.Tap[T, R]) (hook.Tap[T, R], error) {
			fields := tapFields(t)
			if len(t.Before) > 0 {
				fields = append(fields, Field{Key: "before", Value: t.Before})
			}
			_ = r.Record(hookName, EventRegister, fields...)
			return t, nil
		},
		Call: func(T) {
			_ = r.Record(hookName, EventCall)
		},
		Tap: func(t hook.Tap[T, R]) {
			_ = r.Record(hookName, EventTap, tapFields(t)...)
		},
		Error: func(err error) {
			_ = r.Record(hookName, EventError, Field{Key: "error", Value: err.Error()})
		},
		Result: func(R) {
			_ = r.Record(hookName, EventResult)
		},
		Done: func() {
			_ = r.Record(hookName, EventDone)
		},
	}
}
