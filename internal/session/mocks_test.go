package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	ctxcompress "codeassist/internal/context"
	"codeassist/internal/perception"
	"codeassist/internal/tools"
	"codeassist/internal/types"
)

// --- MockTransport ---

// MockTransport implements perception.Transport for testing.
type MockTransport struct {
	SendFunc   func(ctx context.Context, req *perception.Request) (*perception.Response, error)
	StreamFunc func(ctx context.Context, req *perception.Request) (<-chan perception.Event, <-chan error)
	PingFunc   func(ctx context.Context) error

	mu       sync.Mutex
	requests []*perception.Request
}

func (m *MockTransport) record(req *perception.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
}

// Requests returns every request seen so far.
func (m *MockTransport) Requests() []*perception.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*perception.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockTransport) Send(ctx context.Context, req *perception.Request) (*perception.Response, error) {
	m.record(req)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, req)
	}
	return &perception.Response{Text: "ok", StopReason: "end_turn"}, nil
}

func (m *MockTransport) Stream(ctx context.Context, req *perception.Request) (<-chan perception.Event, <-chan error) {
	m.record(req)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	return eventStream(nil, perception.TextDelta{Text: "ok"}, perception.Completion{StopReason: "end_turn"})
}

func (m *MockTransport) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockTransport) Provider() string { return "mock" }
func (m *MockTransport) Model() string    { return "mock-model" }

// eventStream replays events and then reports err, the way the real
// transports close their channels.
func eventStream(err error, events ...perception.Event) (<-chan perception.Event, <-chan error) {
	ch := make(chan perception.Event, len(events))
	errc := make(chan error, 1)
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	if err != nil {
		errc <- err
	}
	close(errc)
	return ch, errc
}

// responses returns a SendFunc that replays resps in order and then repeats
// the last one.
func responses(resps ...*perception.Response) func(context.Context, *perception.Request) (*perception.Response, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, *perception.Request) (*perception.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		r := resps[i]
		if i < len(resps)-1 {
			i++
		}
		return r, nil
	}
}

// --- Stub tools ---

type stubTools struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubTools) tool(name string, required []string, fn func(args map[string]any) tools.Result) *tools.Tool {
	props := make(map[string]tools.Property, len(required))
	for _, r := range required {
		props[r] = tools.Property{Type: "string", Description: r}
	}
	return &tools.Tool{
		Name:        name,
		Description: name,
		Category:    tools.CategoryFile,
		Schema:      tools.ToolSchema{Required: required, Properties: props},
		Execute: func(_ context.Context, args map[string]any) (tools.Result, error) {
			s.mu.Lock()
			s.calls = append(s.calls, name)
			s.mu.Unlock()
			return fn(args), nil
		},
	}
}

func (s *stubTools) executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakePaths struct {
	dirs map[string]bool
}

func (f fakePaths) IsDir(p string) bool  { return f.dirs[p] }
func (f fakePaths) IsFile(p string) bool { return !f.dirs[p] }

// newStubExecutor builds an executor over stub file tools:
// set_working_directory, list_directory, find_files (one match, app.py),
// read_file and modify_code.
func newStubExecutor(t *testing.T, transport perception.Transport, cfg ExecutorConfig) (*Executor, *stubTools) {
	t.Helper()
	st := &stubTools{}
	reg := tools.NewRegistry()
	reg.MustRegister(st.tool(tools.ToolSetWorkingDirectory, []string{"path"}, func(a map[string]any) tools.Result {
		return tools.Result{"success": true, "path": a["path"]}
	}))
	reg.MustRegister(st.tool(tools.ToolListDirectory, []string{"path"}, func(a map[string]any) tools.Result {
		return tools.Result{"path": a["path"], "files": []map[string]any{}, "total_entries": 0}
	}))
	reg.MustRegister(st.tool(tools.ToolFindFiles, []string{"path", "pattern"}, func(a map[string]any) tools.Result {
		return tools.Result{
			"matches":       []map[string]any{{"name": "app.py", "path": "app.py", "size_bytes": 21}},
			"total_matches": 1,
		}
	}))
	reg.MustRegister(st.tool(tools.ToolReadFile, []string{"path"}, func(a map[string]any) tools.Result {
		return tools.Result{"path": a["path"], "content": "print('hello world')"}
	}))
	reg.MustRegister(st.tool(tools.ToolModifyCode, []string{"filepath", "original_code", "new_code"}, func(a map[string]any) tools.Result {
		return tools.Result{"success": true, "filepath": a["filepath"], "saw_content": a[tools.FileContentField]}
	}))

	disp := tools.NewDispatcher(reg, fakePaths{dirs: map[string]bool{"/srv": true}})
	mgr := ctxcompress.NewManager(ctxcompress.DefaultConfig(), ctxcompress.NewTokenCounter())
	return NewExecutor(Deps{Transport: transport, Context: mgr, Dispatcher: disp}, cfg), st
}

func noFollowUp() ExecutorConfig {
	cfg := DefaultExecutorConfig()
	cfg.FollowUp = false
	return cfg
}

func callNames(recs []tools.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Call.Name
	}
	return out
}

func messagesWithRole(e *Executor, role types.Role) []ctxcompress.Message {
	var out []ctxcompress.Message
	for _, m := range e.Context().Messages() {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

func requireSingleRequest(t *testing.T, m *MockTransport) *perception.Request {
	t.Helper()
	reqs := m.Requests()
	require.Len(t, reqs, 1)
	return reqs[0]
}
