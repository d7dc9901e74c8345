// Package host is the boundary to the Maya standalone runtime.
//
// The harness never links against Maya; it drives the host through a small
// stdio protocol spoken by a bootstrap running inside mayapy. Everything the
// rest of the harness needs from Maya is behind the Runtime and Commander
// interfaces so the driver can be exercised without an install.
package host

import "context"

// EventKind classifies one per-test notification.
type EventKind string

const (
	EventStart EventKind = "start"
	EventPass  EventKind = "pass"
	EventFail  EventKind = "fail"
	EventError EventKind = "error"
	EventSkip  EventKind = "skip"
)

// TestEvent is streamed while a unit runs.
type TestEvent struct {
	Kind    EventKind
	Test    string // qualified test id, e.g. "test_sample.SampleTests.test_create_sphere"
	Message string // failure/error detail, empty otherwise
}

// EventSink receives test events as they happen.
type EventSink interface {
	Event(TestEvent)
}

// Unit is one runnable test module, optionally narrowed to a class or a
// single method.
type Unit struct {
	Dir    string // directory holding the module
	Module string // module name without extension, e.g. "test_sample"
	Filter string // "Class" or "Class.test_method", empty for the whole module
}

// ScriptEditorState mirrors the host script editor suppression flags.
type ScriptEditorState struct {
	SuppressResults  bool
	SuppressErrors   bool
	SuppressWarnings bool
	SuppressInfo     bool
}

// Suppressed is the state that silences every interactive output channel.
func Suppressed() ScriptEditorState {
	return ScriptEditorState{
		SuppressResults:  true,
		SuppressErrors:   true,
		SuppressWarnings: true,
		SuppressInfo:     true,
	}
}

// Runtime is the host's standalone lifecycle. Initialize must precede any
// Commander call; Uninitialize is required on Maya 2016 and later.
type Runtime interface {
	Initialize(ctx context.Context) error
	Uninitialize(ctx context.Context) error
	Version(ctx context.Context) (float64, error)
}

// Commander is the slice of the host command namespace the harness drives.
type Commander interface {
	NewScene(ctx context.Context) error
	LoadPlugin(ctx context.Context, name string) error
	UnloadPlugin(ctx context.Context, name string) error
	ScriptEditor(ctx context.Context) (ScriptEditorState, error)
	SetScriptEditor(ctx context.Context, state ScriptEditorState) error

	// RunUnit executes one unit, streaming an event per test to sink. When
	// resetScene is set the host opens a blank scene after every test.
	RunUnit(ctx context.Context, unit Unit, resetScene bool, sink EventSink) error
}

// Importer exposes the interpreter's import path for reconciliation.
type Importer interface {
	// ImportPaths returns the live import path with symlinks resolved, so
	// duplicate entries reached via different links compare equal.
	ImportPaths(ctx context.Context) ([]string, error)
	AddImportPath(ctx context.Context, dir string) error
	RemoveImportPath(ctx context.Context, dir string) error
}

// Host is everything the execution driver needs from the runtime.
type Host interface {
	Runtime
	Commander
	Importer
}
