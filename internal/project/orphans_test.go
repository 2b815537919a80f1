package project

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindOrphansIgnoresOwnedLogs(t *testing.T) {
	store := testStore(t)
	writeLines(t, store.SessionPath("proj", "alive"),
		`{"type":"user","uuid":"u1","parentUuid":null,"sessionId":"alive"}`,
	)
	writeLines(t, filepath.Join(store.ProjectDir("proj"), "agent-owned.jsonl"),
		`{"type":"user","uuid":"s1","parentUuid":null,"sessionId":"alive"}`,
	)
	writeLines(t, filepath.Join(store.ProjectDir("proj"), "agent-lost.jsonl"),
		`{"type":"user","uuid":"s2","parentUuid":null,"sessionId":"dead"}`,
	)

	orphans, err := NewJanitor(store, 2).FindOrphans("proj")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(orphans) != 1 || orphans[0].Session != "dead" {
		t.Fatalf("orphans: %+v", orphans)
	}
}

func TestCleanupThreshold(t *testing.T) {
	store := testStore(t)
	writeLines(t, store.SessionPath("proj", "alive"),
		`{"type":"user","uuid":"u1","parentUuid":null,"sessionId":"alive"}`,
	)
	// Handshake-only: two lines, owner gone.
	small := filepath.Join(store.ProjectDir("proj"), "gone", "agent-small.jsonl")
	writeLines(t, small,
		`{"type":"user","uuid":"s1","parentUuid":null,"sessionId":"gone"}`,
		`{"type":"assistant","uuid":"s2","parentUuid":"s1","sessionId":"gone"}`,
	)
	// Substantial: three lines, owner gone.
	big := filepath.Join(store.ProjectDir("proj"), "agent-big.jsonl")
	writeLines(t, big,
		`{"type":"user","uuid":"b1","parentUuid":null,"sessionId":"gone"}`,
		`{"type":"assistant","uuid":"b2","parentUuid":"b1","sessionId":"gone"}`,
		`{"type":"user","uuid":"b3","parentUuid":"b2","sessionId":"gone"}`,
	)

	j := NewJanitor(store, 2)
	orphans, err := j.FindOrphans("proj")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(orphans) != 2 {
		t.Fatalf("orphans: %+v", orphans)
	}
	report, err := j.Cleanup(orphans)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if report.Deleted != 1 || report.BackedUp != 1 {
		t.Fatalf("report: %+v", report)
	}

	// Small one is gone without a backup, and its emptied folder pruned.
	if _, err := os.Stat(small); !os.IsNotExist(err) {
		t.Fatalf("small orphan still present")
	}
	if _, err := os.Stat(filepath.Join(store.ProjectDir("proj"), "gone")); !os.IsNotExist(err) {
		t.Fatalf("emptied per-session folder not pruned")
	}
	if report.FoldersRemoved != 1 {
		t.Fatalf("folders removed: %+v", report)
	}

	// Big one moved under the backup dir, name preserved.
	backup := filepath.Join(store.ProjectDir("proj"), store.BackupDirName, "agent-big.jsonl")
	if _, err := os.Stat(backup); err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if _, err := os.Stat(big); !os.IsNotExist(err) {
		t.Fatalf("big orphan still at original path")
	}
}

func TestFindOrphanTodos(t *testing.T) {
	store := testStore(t)
	writeLines(t, store.SessionPath("proj", "alive"),
		`{"type":"user","uuid":"u1","parentUuid":null,"sessionId":"alive"}`,
	)
	writeLines(t, filepath.Join(store.TodosRoot, "alive-agent-alive.json"), `[]`)
	writeLines(t, filepath.Join(store.TodosRoot, "dead-agent-dead.json"), `[]`)

	j := NewJanitor(store, 2)
	orphans, err := j.FindOrphanTodos()
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(orphans) != 1 || orphans[0].Session != "dead" || orphans[0].Kind != OrphanTodo {
		t.Fatalf("orphans: %+v", orphans)
	}

	report, err := j.Cleanup(orphans)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	// Todos always move to backup, never a permanent delete.
	if report.BackedUp != 1 || report.Deleted != 0 {
		t.Fatalf("report: %+v", report)
	}
	backup := filepath.Join(store.TodosRoot, store.BackupDirName, "dead-agent-dead.json")
	if _, err := os.Stat(backup); err != nil {
		t.Fatalf("todo backup missing: %v", err)
	}
}
