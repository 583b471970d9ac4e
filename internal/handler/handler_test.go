package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arturoeanton/go-codebase-assistant/internal/adapter/files"
	"github.com/arturoeanton/go-codebase-assistant/internal/adapter/store"
	"github.com/arturoeanton/go-codebase-assistant/internal/adapter/vcs"
	"github.com/arturoeanton/go-codebase-assistant/internal/chunker"
	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
	"github.com/arturoeanton/go-codebase-assistant/internal/service"
	"github.com/gofiber/fiber/v3"
)

// unitEmbedder maps every text onto the same unit vector, so every chunk is
// at distance 0 from every question.
type unitEmbedder struct{}

func (unitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (unitEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

const testPlan = `{"project_name":"hello_app","description":"hello","tech_stack":"Python","files":[
 {"path":"main.py","purpose":"entry"},
 {"path":"README.md","purpose":"docs"}]}`

type scriptCompleter struct{}

func (scriptCompleter) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	if strings.HasPrefix(req.User, "Project: ") && !strings.Contains(req.User, "Path: ") {
		return testPlan, nil
	}
	if strings.Contains(req.User, "Path: main.py") {
		return "print('hello')\n", nil
	}
	if strings.Contains(req.System, "Context from indexed codebase") {
		return "main.py prints hello", nil
	}
	return "# hello\n", nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	session := service.NewSession()
	fm := files.NewManager(service.DefaultIgnoreDirs...)
	indexer := service.NewIndexer(session, store.NewBoltStore(filepath.Join(t.TempDir(), "index")), unitEmbedder{},
		vcs.NewGitProvider(), chunker.New(chunker.DefaultSize, chunker.DefaultOverlap), t.TempDir())
	assistant := service.NewAssistant(session, unitEmbedder{}, scriptCompleter{}, service.DefaultAssistantConfig())
	indexer.Notify(func(st domain.IndexStatus) {
		_ = fm.SetRoot(st.ProjectPath)
		assistant.Reset()
	}, func() {
		fm.ClearRoot()
		assistant.Reset()
	})
	gen := service.NewGenerator(service.NewPlanner(scriptCompleter{}, service.DefaultGenerationConfig()),
		scriptCompleter{}, indexer, service.DefaultGenerationConfig())

	app := fiber.New()
	NewIndexHandler(indexer).Register(app)
	NewQueryHandler(assistant).Register(app)
	NewFilesHandler(fm).Register(app)
	NewGenerateHandler(gen).Register(app)
	return app
}

func projectDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "sample")
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"main.py":     "def main():\n    print('hello')\n",
		"pkg/util.go": "package pkg\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func do(t *testing.T, app *fiber.App, method, target string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestIndexQueryAndClear(t *testing.T) {
	app := newTestApp(t)

	code, out := do(t, app, http.MethodGet, "/status", nil)
	if code != http.StatusOK || out["indexed"] != false {
		t.Fatalf("initial status = %d %v", code, out)
	}

	code, out = do(t, app, http.MethodPost, "/query", map[string]any{"question": "what does main do?"})
	if code != http.StatusBadRequest || out["error"] != "No codebase indexed yet." {
		t.Errorf("query before index = %d %v", code, out)
	}

	code, out = do(t, app, http.MethodPost, "/index", map[string]any{"path": projectDir(t)})
	if code != http.StatusOK {
		t.Fatalf("index = %d %v", code, out)
	}
	if out["project_name"] != "sample" || out["file_count"] != float64(2) || out["message"] != "Successfully indexed 'sample'" {
		t.Errorf("index response = %v", out)
	}

	code, out = do(t, app, http.MethodPost, "/query", map[string]any{
		"question":     "what does main do?",
		"chat_history": []map[string]string{},
	})
	if code != http.StatusOK || out["answer"] != "main.py prints hello" {
		t.Fatalf("query = %d %v", code, out)
	}
	if sources, _ := out["sources"].([]any); len(sources) != 2 {
		t.Errorf("sources = %v", out["sources"])
	}

	code, out = do(t, app, http.MethodDelete, "/index", nil)
	if code != http.StatusOK || out["indexed"] != false {
		t.Errorf("clear = %d %v", code, out)
	}
	code, _ = do(t, app, http.MethodGet, "/files/tree", nil)
	if code != http.StatusBadRequest {
		t.Errorf("tree after clear = %d, want 400", code)
	}
}

func TestIndexErrors(t *testing.T) {
	app := newTestApp(t)

	code, out := do(t, app, http.MethodPost, "/index", map[string]any{"path": ""})
	if code != http.StatusBadRequest {
		t.Errorf("empty path = %d %v", code, out)
	}

	code, out = do(t, app, http.MethodPost, "/index", map[string]any{"path": filepath.Join(t.TempDir(), "nope")})
	if code != http.StatusBadRequest || !strings.Contains(out["error"].(string), "path does not exist") {
		t.Errorf("missing path = %d %v", code, out)
	}

	code, out = do(t, app, http.MethodPost, "/index", map[string]any{"path": t.TempDir()})
	if code != http.StatusBadRequest || !strings.Contains(out["error"].(string), "no supported files found") {
		t.Errorf("empty project = %d %v", code, out)
	}

	code, _ = do(t, app, http.MethodPost, "/query", map[string]any{"question": "  "})
	if code != http.StatusBadRequest {
		t.Errorf("blank question = %d", code)
	}
}

func TestFileRoutes(t *testing.T) {
	app := newTestApp(t)
	if code, out := do(t, app, http.MethodPost, "/index", map[string]any{"path": projectDir(t)}); code != http.StatusOK {
		t.Fatalf("index = %d %v", code, out)
	}

	code, out := do(t, app, http.MethodGet, "/files/tree", nil)
	if code != http.StatusOK || out["type"] != "dir" {
		t.Errorf("tree = %d %v", code, out)
	}

	code, out = do(t, app, http.MethodGet, "/files/read?path=main.py", nil)
	if code != http.StatusOK || !strings.Contains(out["content"].(string), "print('hello')") {
		t.Errorf("read = %d %v", code, out)
	}

	code, _ = do(t, app, http.MethodGet, "/files/read?path=../../etc/passwd", nil)
	if code != http.StatusForbidden {
		t.Errorf("traversal read = %d, want 403", code)
	}

	code, out = do(t, app, http.MethodPost, "/files/write", map[string]any{"path": "docs/notes.md", "content": "hi"})
	if code != http.StatusOK || out["action"] != "created" {
		t.Errorf("write = %d %v", code, out)
	}

	code, out = do(t, app, http.MethodPost, "/files/rename", map[string]any{"old_path": "docs/notes.md", "new_path": "docs/NOTES.md"})
	if code != http.StatusOK || out["action"] != "renamed" {
		t.Errorf("rename = %d %v", code, out)
	}

	code, out = do(t, app, http.MethodDelete, "/files/delete?path=docs/NOTES.md", nil)
	if code != http.StatusOK || out["action"] != "deleted" {
		t.Errorf("delete = %d %v", code, out)
	}

	code, _ = do(t, app, http.MethodDelete, "/files/delete?path=docs/NOTES.md", nil)
	if code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", code)
	}
}

func TestGenerateStreamsNDJSON(t *testing.T) {
	app := newTestApp(t)
	out := t.TempDir()

	data, _ := json.Marshal(map[string]string{"description": "a hello world app", "output_dir": out})
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/x-ndjson") {
		t.Errorf("content type = %q", ct)
	}

	var types []string
	var last map[string]any
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad line %q: %v", line, err)
		}
		types = append(types, e["type"].(string))
		last = e
	}

	want := "status,plan,generating,file_done,generating,file_done,done,indexed"
	if got := strings.Join(types, ","); got != want {
		t.Fatalf("events = %s\nwant     %s", got, want)
	}
	if last["file_count"] != float64(2) {
		t.Errorf("indexed event = %v", last)
	}

	content, err := os.ReadFile(filepath.Join(out, "hello_app", "main.py"))
	if err != nil || string(content) != "print('hello')\n" {
		t.Errorf("main.py = %q, %v", content, err)
	}

	// The generated project is now the file manager root.
	code, tree := do(t, app, http.MethodGet, "/files/tree", nil)
	if code != http.StatusOK || tree["name"] != "hello_app" {
		t.Errorf("tree = %d %v", code, tree)
	}
}

func TestGenerateValidation(t *testing.T) {
	app := newTestApp(t)

	code, out := do(t, app, http.MethodPost, "/generate", map[string]any{"description": "", "output_dir": t.TempDir()})
	if code != http.StatusBadRequest || out["error"] != "description is required" {
		t.Errorf("generate = %d %v", code, out)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{port.ErrInvalidPath, http.StatusBadRequest},
		{&port.PlanParseError{Reason: "x"}, http.StatusBadRequest},
		{port.ErrPermission, http.StatusForbidden},
		{os.ErrNotExist, http.StatusNotFound},
		{&port.FetchError{Stderr: "fatal"}, http.StatusBadGateway},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
