// Package hosttest provides a scriptable in-memory Host for driver tests.
package hosttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dlpipeline/mayatest/internal/host"
)

// Fake records every call made against it and plays back scripted results.
// Zero value is usable: version 2024, every unit passes one synthetic test.
type Fake struct {
	mu sync.Mutex

	VersionValue float64
	VersionErr   error
	InitErr      error
	UnloadErr    map[string]error

	// Results maps a unit key (module, or module.filter) to the events the
	// fake streams for it. Units without an entry stream one passing test.
	Results map[string][]host.TestEvent

	InitCalls   int
	UninitCalls int
	SceneResets int
	Loaded      []string
	Unloaded    []string

	Editor     host.ScriptEditorState
	EditorSets []host.ScriptEditorState

	Paths        []string
	AddedPaths   []string
	RemovedPaths []string

	RanUnits   []host.Unit
	ResetFlags []bool
}

var _ host.Host = (*Fake)(nil)

func UnitKey(unit host.Unit) string {
	if unit.Filter == "" {
		return unit.Module
	}
	return unit.Module + "." + unit.Filter
}

func (f *Fake) Initialize(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitErr
}

func (f *Fake) Uninitialize(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UninitCalls++
	return nil
}

func (f *Fake) Version(ctx context.Context) (float64, error) {
	if f.VersionErr != nil {
		return 0, f.VersionErr
	}
	if f.VersionValue == 0 {
		return 2024, nil
	}
	return f.VersionValue, nil
}

func (f *Fake) NewScene(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SceneResets++
	return nil
}

func (f *Fake) LoadPlugin(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Loaded = append(f.Loaded, name)
	return nil
}

func (f *Fake) UnloadPlugin(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.UnloadErr[name]; err != nil {
		return err
	}
	f.Unloaded = append(f.Unloaded, name)
	return nil
}

func (f *Fake) ScriptEditor(ctx context.Context) (host.ScriptEditorState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Editor, nil
}

func (f *Fake) SetScriptEditor(ctx context.Context, state host.ScriptEditorState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Editor = state
	f.EditorSets = append(f.EditorSets, state)
	return nil
}

func (f *Fake) RunUnit(ctx context.Context, unit host.Unit, resetScene bool, sink host.EventSink) error {
	f.mu.Lock()
	f.RanUnits = append(f.RanUnits, unit)
	f.ResetFlags = append(f.ResetFlags, resetScene)
	events, scripted := f.Results[UnitKey(unit)]
	f.mu.Unlock()

	if !scripted {
		test := fmt.Sprintf("%s.Tests.test_ok", unit.Module)
		events = []host.TestEvent{
			{Kind: host.EventStart, Test: test},
			{Kind: host.EventPass, Test: test},
		}
	}
	for _, ev := range events {
		sink.Event(ev)
	}
	return nil
}

func (f *Fake) ImportPaths(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Paths...), nil
}

func (f *Fake) AddImportPath(ctx context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Paths = append([]string{dir}, f.Paths...)
	f.AddedPaths = append(f.AddedPaths, dir)
	return nil
}

func (f *Fake) RemoveImportPath(ctx context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.Paths {
		if p == dir {
			f.Paths = append(f.Paths[:i], f.Paths[i+1:]...)
			break
		}
	}
	f.RemovedPaths = append(f.RemovedPaths, dir)
	return nil
}
