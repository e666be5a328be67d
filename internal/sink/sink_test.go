package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/viso-study/visocode/config"
	"github.com/viso-study/visocode/internal/agent/core"
)

func testSink(t *testing.T) *FileSink {
	t.Helper()
	return New(config.FileConfig{DataDir: t.TempDir(), AnswerFile: "latest_explanation.json"})
}

func samplePayload() core.Payload {
	p := core.Payload{
		Question: "why does the derivative measure slope?",
		VisualBrief: []core.VisualConcept{
			{Concept: "secant to tangent", Caption: "a chord rotating into the tangent line"},
		},
	}
	p.Explanation.Content = "The derivative is the limit of secant slopes."
	p.Normalize()
	return p
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := testSink(t)
	want := samplePayload()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Question != want.Question {
		t.Fatalf("question = %q, want %q", got.Question, want.Question)
	}
	if got.Explanation.Content != want.Explanation.Content {
		t.Fatalf("explanation = %q", got.Explanation.Content)
	}
	if len(got.VisualBrief) != 1 || got.VisualBrief[0].Concept != "secant to tangent" {
		t.Fatalf("visual brief not preserved: %+v", got.VisualBrief)
	}
	if got.VisualAssets.Icons == nil {
		t.Fatalf("icons should be normalized to an empty slice on load")
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	s := testSink(t)
	p := samplePayload()
	if err := s.Save(p); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	first, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("reading record: %v", err)
	}
	if err := s.Save(p); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	second, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("reading record: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("repeated saves of the same payload should produce identical records")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s := testSink(t)
	if err := s.Save(samplePayload()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != filepath.Base(s.Path()) {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("data dir should hold only the record, got %v", names)
	}
}

func TestSaveOverwritesPreviousRecord(t *testing.T) {
	s := testSink(t)
	p := samplePayload()
	if err := s.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	p.Explanation.Content = "Updated explanation."
	if err := s.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Explanation.Content != "Updated explanation." {
		t.Fatalf("explanation = %q, want the updated record", got.Explanation.Content)
	}
}

func TestLoadMissingRecord(t *testing.T) {
	s := testSink(t)
	if _, err := s.Load(); !os.IsNotExist(err) {
		t.Fatalf("error = %v, want a not-exist error", err)
	}
}

func TestSaveCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	s := New(config.FileConfig{DataDir: dir, AnswerFile: "latest_explanation.json"})
	if err := s.Save(samplePayload()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Fatalf("record missing: %v", err)
	}
}
