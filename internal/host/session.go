package host

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

//go:embed bootstrap.py
var bootstrap []byte

// Session is the production Host: a mayapy child process running the
// embedded bootstrap, one JSON request/response per line on stdio. All calls
// are serialized; the protocol has no concurrent requests.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	enc    *json.Encoder
	out    *bufio.Scanner
	script string

	mu     sync.Mutex
	closed bool
}

type request struct {
	Op         string            `json:"op"`
	Name       string            `json:"name,omitempty"`
	Dir        string            `json:"dir,omitempty"`
	Module     string            `json:"module,omitempty"`
	Filter     string            `json:"filter,omitempty"`
	Path       string            `json:"path,omitempty"`
	ResetScene bool              `json:"reset_scene,omitempty"`
	State      *scriptEditorWire `json:"state,omitempty"`
}

type response struct {
	OK      bool              `json:"ok"`
	Error   string            `json:"error"`
	Version float64           `json:"version"`
	Paths   []string          `json:"paths"`
	State   *scriptEditorWire `json:"state"`

	// set on streamed test events only
	Event   string `json:"event"`
	Test    string `json:"test"`
	Message string `json:"message"`
}

type scriptEditorWire struct {
	SuppressResults  bool `json:"suppress_results"`
	SuppressErrors   bool `json:"suppress_errors"`
	SuppressWarnings bool `json:"suppress_warnings"`
	SuppressInfo     bool `json:"suppress_info"`
}

// Start launches the interpreter with the bootstrap and the given
// environment. The caller owns the session and must Close it.
func Start(ctx context.Context, interpreter string, environ []string) (*Session, error) {
	script, err := writeBootstrap()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, interpreter, "-u", script)
	cmd.Env = environ
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(script)
		return nil, fmt.Errorf("failed to open host stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.Remove(script)
		return nil, fmt.Errorf("failed to open host stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		os.Remove(script)
		return nil, fmt.Errorf("failed to start host interpreter %s: %w", interpreter, err)
	}
	slog.Debug("host interpreter started", "interpreter", interpreter, "pid", cmd.Process.Pid)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	return &Session{
		cmd:    cmd,
		stdin:  stdin,
		enc:    json.NewEncoder(stdin),
		out:    scanner,
		script: script,
	}, nil
}

func writeBootstrap() (string, error) {
	f, err := os.CreateTemp("", "mayatest-bootstrap-*.py")
	if err != nil {
		return "", fmt.Errorf("failed to write host bootstrap: %w", err)
	}
	if _, err := f.Write(bootstrap); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write host bootstrap: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write host bootstrap: %w", err)
	}
	return f.Name(), nil
}

// call sends one request and reads lines until the terminal response,
// routing event lines to sink along the way.
func (s *Session) call(req request, sink EventSink) (*response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("host session is closed")
	}
	if err := s.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send %s to host: %w", req.Op, err)
	}

	for s.out.Scan() {
		line := s.out.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			// The host occasionally writes stray output on stdout; skip it.
			slog.Debug("ignoring non-protocol host output", "line", string(line))
			continue
		}
		if resp.Event != "" {
			if sink != nil {
				sink.Event(TestEvent{
					Kind:    EventKind(resp.Event),
					Test:    resp.Test,
					Message: resp.Message,
				})
			}
			continue
		}
		if !resp.OK {
			return nil, fmt.Errorf("host %s failed: %s", req.Op, resp.Error)
		}
		return &resp, nil
	}
	if err := s.out.Err(); err != nil {
		return nil, fmt.Errorf("failed to read host response to %s: %w", req.Op, err)
	}
	return nil, fmt.Errorf("host exited while handling %s", req.Op)
}

func (s *Session) Initialize(ctx context.Context) error {
	_, err := s.call(request{Op: "initialize"}, nil)
	return err
}

func (s *Session) Uninitialize(ctx context.Context) error {
	_, err := s.call(request{Op: "uninitialize"}, nil)
	return err
}

func (s *Session) Version(ctx context.Context) (float64, error) {
	resp, err := s.call(request{Op: "version"}, nil)
	if err != nil {
		return 0, err
	}
	return resp.Version, nil
}

func (s *Session) NewScene(ctx context.Context) error {
	_, err := s.call(request{Op: "new_scene"}, nil)
	return err
}

func (s *Session) LoadPlugin(ctx context.Context, name string) error {
	_, err := s.call(request{Op: "load_plugin", Name: name}, nil)
	return err
}

func (s *Session) UnloadPlugin(ctx context.Context, name string) error {
	_, err := s.call(request{Op: "unload_plugin", Name: name}, nil)
	return err
}

func (s *Session) ScriptEditor(ctx context.Context) (ScriptEditorState, error) {
	resp, err := s.call(request{Op: "script_editor"}, nil)
	if err != nil {
		return ScriptEditorState{}, err
	}
	if resp.State == nil {
		return ScriptEditorState{}, fmt.Errorf("host script_editor returned no state")
	}
	return ScriptEditorState{
		SuppressResults:  resp.State.SuppressResults,
		SuppressErrors:   resp.State.SuppressErrors,
		SuppressWarnings: resp.State.SuppressWarnings,
		SuppressInfo:     resp.State.SuppressInfo,
	}, nil
}

func (s *Session) SetScriptEditor(ctx context.Context, state ScriptEditorState) error {
	_, err := s.call(request{Op: "set_script_editor", State: &scriptEditorWire{
		SuppressResults:  state.SuppressResults,
		SuppressErrors:   state.SuppressErrors,
		SuppressWarnings: state.SuppressWarnings,
		SuppressInfo:     state.SuppressInfo,
	}}, nil)
	return err
}

func (s *Session) RunUnit(ctx context.Context, unit Unit, resetScene bool, sink EventSink) error {
	_, err := s.call(request{
		Op:         "run",
		Dir:        unit.Dir,
		Module:     unit.Module,
		Filter:     unit.Filter,
		ResetScene: resetScene,
	}, sink)
	return err
}

func (s *Session) ImportPaths(ctx context.Context) ([]string, error) {
	resp, err := s.call(request{Op: "import_paths"}, nil)
	if err != nil {
		return nil, err
	}
	return resp.Paths, nil
}

func (s *Session) AddImportPath(ctx context.Context, dir string) error {
	_, err := s.call(request{Op: "add_import_path", Path: dir}, nil)
	return err
}

func (s *Session) RemoveImportPath(ctx context.Context, dir string) error {
	_, err := s.call(request{Op: "remove_import_path", Path: dir}, nil)
	return err
}

// Close asks the host to exit and reaps the child. Safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	defer os.Remove(s.script)

	_ = s.enc.Encode(request{Op: "exit"})
	_ = s.stdin.Close()

	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("host interpreter exited abnormally: %w", err)
	}
	return nil
}
