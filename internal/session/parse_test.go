package session

import (
	"strings"
	"testing"
)

func TestParseLineTurnWithBlocks(t *testing.T) {
	line := `{"type":"assistant","uuid":"a1","parentUuid":"u1","sessionId":"s1","timestamp":"2026-01-02T03:04:05.000Z","message":{"role":"assistant","content":[{"type":"text","text":"running"},{"type":"tool_use","id":"tool1","name":"Bash","input":{}}]}}`
	rec, err := ParseLine([]byte(line))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	turn, ok := rec.(*Turn)
	if !ok {
		t.Fatalf("expected *Turn, got %T", rec)
	}
	if turn.UUID != "a1" || turn.Parent.UUID != "u1" || !turn.Parent.Present {
		t.Fatalf("unexpected identity fields: %+v", turn)
	}
	if turn.Timestamp.IsZero() {
		t.Fatalf("expected parsed timestamp")
	}
	if got := turn.ToolUseIDs(); len(got) != 1 || got[0] != "tool1" {
		t.Fatalf("tool use ids: %v", got)
	}
	if turn.Text() != "running" {
		t.Fatalf("text: %q", turn.Text())
	}
}

func TestParseLineParentTriState(t *testing.T) {
	cases := []struct {
		name    string
		line    string
		present bool
		null    bool
	}{
		{"absent", `{"type":"user","uuid":"u1"}`, false, false},
		{"null", `{"type":"user","uuid":"u1","parentUuid":null}`, true, true},
		{"set", `{"type":"user","uuid":"u1","parentUuid":"x"}`, true, false},
	}
	for _, tc := range cases {
		rec, err := ParseLine([]byte(tc.line))
		if err != nil {
			t.Fatalf("%s: parse: %v", tc.name, err)
		}
		link := rec.(*Turn).Parent
		if link.Present != tc.present || link.IsNull() != tc.null {
			t.Fatalf("%s: got %+v", tc.name, link)
		}
	}
}

func TestParseLineStringContent(t *testing.T) {
	rec, err := ParseLine([]byte(`{"type":"user","uuid":"u1","parentUuid":null,"message":{"role":"user","content":"hello"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	turn := rec.(*Turn)
	if len(turn.Message.Blocks) != 1 || turn.Message.Blocks[0].Type != BlockText {
		t.Fatalf("blocks: %+v", turn.Message.Blocks)
	}
	if turn.Text() != "hello" {
		t.Fatalf("text: %q", turn.Text())
	}
}

func TestParseLineAuxiliaryKinds(t *testing.T) {
	rec, err := ParseLine([]byte(`{"type":"summary","summary":"fixed the race","leafUuid":"a9"}`))
	if err != nil {
		t.Fatalf("parse summary: %v", err)
	}
	sum := rec.(*Summary)
	if sum.LeafUUID != "a9" || sum.Text != "fixed the race" {
		t.Fatalf("summary: %+v", sum)
	}
	if _, ok := rec.(ChainRecord); ok {
		t.Fatalf("summary must not join the chain")
	}

	rec, err = ParseLine([]byte(`{"type":"file-history-snapshot","messageId":"m1","snapshot":{"timestamp":"2026-01-02T03:04:05Z"}}`))
	if err != nil {
		t.Fatalf("parse snapshot: %v", err)
	}
	snap := rec.(*Snapshot)
	if snap.MessageID != "m1" || snap.Timestamp.IsZero() {
		t.Fatalf("snapshot: %+v", snap)
	}

	rec, err = ParseLine([]byte(`{"type":"progress","uuid":"p1","parentUuid":"u1","hookEventName":"Stop"}`))
	if err != nil {
		t.Fatalf("parse progress: %v", err)
	}
	prog := rec.(*Progress)
	if prog.HookEvent != "Stop" || prog.UUID != "p1" {
		t.Fatalf("progress: %+v", prog)
	}
}

func TestParseLineUnknownKindRoundTrips(t *testing.T) {
	line := `{"type":"custom-title","title":"my session","futureField":{"a":1}}`
	rec, err := ParseLine([]byte(line))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := rec.(*Unknown); !ok {
		t.Fatalf("expected *Unknown, got %T", rec)
	}
	if string(rec.Raw()) != line {
		t.Fatalf("raw changed: %s", rec.Raw())
	}
}

func TestParseLineErrors(t *testing.T) {
	if _, err := ParseLine([]byte(`{not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
	if _, err := ParseLine([]byte(`{"uuid":"u1"}`)); err == nil {
		t.Fatalf("expected error for missing type")
	}
}

func TestPatchPreservesUnknownFields(t *testing.T) {
	line := `{"type":"user","uuid":"u2","parentUuid":"gone","sessionId":"s1","gitBranch":"main","customExtra":[1,2,3],"message":{"role":"user","content":"hi"}}`
	rec, err := ParseLine([]byte(line))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fixed, err := Reparent(rec.(ChainRecord), LinkTo("u1"))
	if err != nil {
		t.Fatalf("reparent: %v", err)
	}
	raw := string(fixed.Raw())
	if !strings.Contains(raw, `"gitBranch":"main"`) || !strings.Contains(raw, `"customExtra":[1,2,3]`) {
		t.Fatalf("unknown fields lost: %s", raw)
	}
	if fixed.Link().UUID != "u1" {
		t.Fatalf("parent not rewritten: %+v", fixed.Link())
	}
}

func TestReparentWritesExplicitNull(t *testing.T) {
	rec, err := ParseLine([]byte(`{"type":"user","uuid":"u1"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fixed, err := Reparent(rec.(ChainRecord), NullLink())
	if err != nil {
		t.Fatalf("reparent: %v", err)
	}
	if !strings.Contains(string(fixed.Raw()), `"parentUuid":null`) {
		t.Fatalf("expected explicit null: %s", fixed.Raw())
	}
	if !fixed.Link().Present || !fixed.Link().IsNull() {
		t.Fatalf("link: %+v", fixed.Link())
	}
}

func TestRewriteTextReplacesBlocks(t *testing.T) {
	line := `{"type":"user","uuid":"u1","parentUuid":null,"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"The user doesn't want to proceed"}]}}`
	rec, err := ParseLine([]byte(line))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	turn, err := RewriteText(rec.(*Turn), "The user doesn't want to proceed")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if turn.Text() != "The user doesn't want to proceed" {
		t.Fatalf("text: %q", turn.Text())
	}
	if len(turn.ToolResultIDs()) != 0 {
		t.Fatalf("tool results should be gone")
	}
}
