package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
)

// scriptedCompleter answers the plan request with plan and file requests
// with the file path, failing the files listed in fail.
func scriptedCompleter(plan string, fail ...string) *fakeCompleter {
	return &fakeCompleter{reply: func(req port.CompletionRequest) (string, error) {
		if req.System == planSystemPrompt {
			return plan, nil
		}
		for _, f := range fail {
			if strings.Contains(req.User, "Path: "+f+"\n") {
				return "", errBoom
			}
		}
		return "// generated", nil
	}}
}

type stubIndexer struct {
	dir    string
	status domain.IndexStatus
	err    error
}

func (s *stubIndexer) Index(ctx context.Context, target, token string) (domain.IndexStatus, error) {
	s.dir = target
	if s.err != nil {
		return domain.IndexStatus{}, s.err
	}
	st := s.status
	st.ProjectPath = target
	return st, nil
}

func collect(t *testing.T, ch <-chan domain.Event) []domain.Event {
	t.Helper()
	var events []domain.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}
}

func eventTypes(events []domain.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

const threeFilePlan = `{"project_name":"demo","description":"d","tech_stack":"Go","files":[
 {"path":"main.go","purpose":"entry"},
 {"path":"lib/util.go","purpose":"helpers"},
 {"path":"README.md","purpose":"docs"}]}`

func TestGenerator_EventSequence(t *testing.T) {
	completer := scriptedCompleter(threeFilePlan, "lib/util.go")
	g := NewGenerator(NewPlanner(completer, DefaultGenerationConfig()), completer, nil, DefaultGenerationConfig())
	out := t.TempDir()

	events := collect(t, g.Generate(context.Background(), "a demo", out))

	want := "status,plan,generating,file_done,generating,file_error,generating,file_done,done"
	if got := strings.Join(eventTypes(events), ","); got != want {
		t.Fatalf("events = %s\nwant     %s", got, want)
	}

	plan := events[1]
	if plan.ProjectName != "demo" || plan.TotalFiles != 3 || plan.TechStack != "Go" || plan.ProjectPath != filepath.Join(out, "demo") {
		t.Errorf("plan event = %+v", plan)
	}
	if events[2].Index != 1 || events[4].Index != 2 || events[6].Index != 3 || events[6].Total != 3 {
		t.Errorf("generating indexes wrong: %+v %+v %+v", events[2], events[4], events[6])
	}
	if events[5].File != "lib/util.go" || !strings.Contains(events[5].Error, "boom") {
		t.Errorf("file_error = %+v", events[5])
	}

	done := events[8]
	if done.FileCount != 2 || strings.Join(done.FilesCreated, ",") != "main.go,README.md" {
		t.Errorf("done = %+v", done)
	}
	data, err := os.ReadFile(filepath.Join(out, "demo", "main.go"))
	if err != nil || string(data) != "// generated" {
		t.Errorf("main.go = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(out, "demo", "lib", "util.go")); !os.IsNotExist(err) {
		t.Errorf("failed file should not exist: %v", err)
	}
}

func TestGenerator_FilePromptCarriesPlanContext(t *testing.T) {
	completer := scriptedCompleter(threeFilePlan)
	g := NewGenerator(NewPlanner(completer, DefaultGenerationConfig()), completer, nil, DefaultGenerationConfig())

	collect(t, g.Generate(context.Background(), "a demo", t.TempDir()))

	calls := completer.calls()
	if len(calls) != 4 {
		t.Fatalf("model called %d times, want 4", len(calls))
	}
	file := calls[2]
	for _, want := range []string{"a demo", "lib/util.go", "helpers", "main.go\nlib/util.go\nREADME.md"} {
		if !strings.Contains(file.User, want) {
			t.Errorf("file prompt lacks %q:\n%s", want, file.User)
		}
	}
	if file.MaxTokens != 2048 || file.System != fileSystemPrompt {
		t.Errorf("file request = %+v", file)
	}
}

func TestGenerator_SkipsPathsOutsideProject(t *testing.T) {
	plan := `{"project_name":"demo","files":[
 {"path":"../../etc/passwd","purpose":"nope"},
 {"path":"/abs/ok.txt","purpose":"leading slash is stripped"},
 {"path":"","purpose":"empty"}]}`
	completer := scriptedCompleter(plan)
	g := NewGenerator(NewPlanner(completer, DefaultGenerationConfig()), completer, nil, DefaultGenerationConfig())
	out := t.TempDir()

	events := collect(t, g.Generate(context.Background(), "x", out))

	want := "status,plan,generating,generating,file_done,done"
	if got := strings.Join(eventTypes(events), ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
	if events[2].File != "../../etc/passwd" || events[4].File != "abs/ok.txt" {
		t.Errorf("files = %q, %q", events[2].File, events[4].File)
	}
	if n := len(completer.calls()); n != 3 {
		t.Errorf("model called %d times, want 3", n)
	}
	if got := events[len(events)-1].FilesCreated; len(got) != 1 || got[0] != "abs/ok.txt" {
		t.Errorf("files_created = %v", got)
	}
	if _, err := os.Stat(filepath.Join(out, "demo", "abs", "ok.txt")); err != nil {
		t.Error(err)
	}
}

func TestGenerator_DoesNotWriteThroughSymlinks(t *testing.T) {
	out := t.TempDir()
	outside := t.TempDir()
	if err := os.MkdirAll(filepath.Join(out, "demo"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(out, "demo", "lib")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	plan := `{"project_name":"demo","files":[
 {"path":"main.go","purpose":"entry"},
 {"path":"lib/util.go","purpose":"helpers"}]}`
	completer := scriptedCompleter(plan)
	g := NewGenerator(NewPlanner(completer, DefaultGenerationConfig()), completer, nil, DefaultGenerationConfig())

	events := collect(t, g.Generate(context.Background(), "x", out))

	want := "status,plan,generating,file_done,generating,done"
	if got := strings.Join(eventTypes(events), ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
	if got := events[len(events)-1].FilesCreated; len(got) != 1 || got[0] != "main.go" {
		t.Errorf("files_created = %v", got)
	}
	if _, err := os.Stat(filepath.Join(outside, "util.go")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("util.go written outside the project: %v", err)
	}
}

func TestGenerator_PlanFailure(t *testing.T) {
	completer := scriptedCompleter("I cannot do that")
	g := NewGenerator(NewPlanner(completer, DefaultGenerationConfig()), completer, nil, DefaultGenerationConfig())

	events := collect(t, g.Generate(context.Background(), "x", t.TempDir()))

	if got := strings.Join(eventTypes(events), ","); got != "status,error" {
		t.Fatalf("events = %s", got)
	}
	if events[1].Message == "" {
		t.Error("error event has no message")
	}
}

func TestGenerator_IndexesFinishedProject(t *testing.T) {
	completer := scriptedCompleter(threeFilePlan)
	idx := &stubIndexer{status: domain.IndexStatus{Indexed: true, FileCount: 3, ChunkCount: 5}}
	g := NewGenerator(NewPlanner(completer, DefaultGenerationConfig()), completer, idx, DefaultGenerationConfig())
	out := t.TempDir()

	events := collect(t, g.Generate(context.Background(), "x", out))

	last := events[len(events)-1]
	if last.Type != domain.EventIndexed || last.FileCount != 3 || last.ChunkCount != 5 {
		t.Errorf("last event = %+v", last)
	}
	if idx.dir != filepath.Join(out, "demo") {
		t.Errorf("indexed %s", idx.dir)
	}
}

func TestGenerator_IndexFailureIsReported(t *testing.T) {
	completer := scriptedCompleter(threeFilePlan)
	idx := &stubIndexer{err: errors.New("embedding backend down")}
	g := NewGenerator(NewPlanner(completer, DefaultGenerationConfig()), completer, idx, DefaultGenerationConfig())

	events := collect(t, g.Generate(context.Background(), "x", t.TempDir()))

	last := events[len(events)-1]
	if last.Type != domain.EventIndexError || last.Message != "embedding backend down" {
		t.Errorf("last event = %+v", last)
	}
	if events[len(events)-2].Type != domain.EventDone {
		t.Error("done must precede index_error")
	}
}

func TestGenerator_CancelStopsStream(t *testing.T) {
	completer := scriptedCompleter(threeFilePlan)
	g := NewGenerator(NewPlanner(completer, DefaultGenerationConfig()), completer, nil, DefaultGenerationConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := g.Generate(ctx, "x", t.TempDir())
	for e := range ch {
		if e.Type == domain.EventPlan {
			cancel()
			break
		}
	}

	// The producer must notice the cancellation and close the channel.
	rest := collect(t, ch)
	for _, e := range rest {
		if e.Type == domain.EventDone {
			t.Error("cancelled run reached done")
		}
	}
}

func TestGenerator_GenerateFromPlan(t *testing.T) {
	completer := scriptedCompleter("")
	g := NewGenerator(NewPlanner(completer, DefaultGenerationConfig()), completer, nil, DefaultGenerationConfig())
	dir := t.TempDir()
	plan := domain.ProjectPlan{ProjectName: "p", Files: []domain.PlannedFile{{Path: "a.txt", Purpose: "a"}}}

	events := collect(t, g.GenerateFromPlan(context.Background(), "desc", plan, dir))

	if got := strings.Join(eventTypes(events), ","); got != "plan,generating,file_done,done" {
		t.Fatalf("events = %s", got)
	}
	if events[0].Description != "desc" {
		t.Errorf("plan description = %q", events[0].Description)
	}
}

func TestEventJSON(t *testing.T) {
	data, err := domain.Event{Type: domain.EventDone, ProjectName: "p", ProjectPath: "/x/p"}.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"files_created":[]`) || !strings.Contains(string(data), `"file_count":0`) {
		t.Errorf("done json = %s", data)
	}

	data, _ = domain.Event{Type: domain.EventGenerating, File: "a.go", Index: 1, Total: 2}.MarshalJSON()
	if string(data) != `{"file":"a.go","index":1,"total":2,"type":"generating"}` {
		t.Errorf("generating json = %s", data)
	}
}
