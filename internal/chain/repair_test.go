package chain

import (
	"testing"

	"sessionctl/internal/session"
)

func link(t *testing.T, rec session.Record) session.ParentLink {
	t.Helper()
	cr, ok := session.AsChain(rec)
	if !ok {
		t.Fatalf("record %T has no chain identity", rec)
	}
	return cr.Link()
}

func TestAutoRepairHealsAndIsIdempotent(t *testing.T) {
	records := mustParse(t,
		turnLine("user", "u1", absent),
		turnLine("assistant", "a1", "u1"),
		turnLine("user", "u2", absent),
		turnLine("assistant", "a2", "missing"),
	)
	repairedRecords, n, err := AutoRepair(records)
	if err != nil {
		t.Fatalf("auto repair: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 repairs, got %d", n)
	}
	if !link(t, repairedRecords[0]).IsNull() {
		t.Fatalf("first record should be upgraded to null: %+v", link(t, repairedRecords[0]))
	}
	if got := link(t, repairedRecords[2]).UUID; got != "a1" {
		t.Fatalf("u2 should point at a1, got %q", got)
	}
	if got := link(t, repairedRecords[3]).UUID; got != "u2" {
		t.Fatalf("a2 should point at u2, got %q", got)
	}

	if report := ValidateChain(repairedRecords); !report.Valid {
		t.Fatalf("repaired chain must validate: %+v", report)
	}

	again, n2, err := AutoRepair(repairedRecords)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if n2 != 0 {
		t.Fatalf("second pass must repair nothing, got %d", n2)
	}
	for i := range again {
		if string(again[i].Raw()) != string(repairedRecords[i].Raw()) {
			t.Fatalf("second pass changed record %d", i)
		}
	}
}

func TestAutoRepairLeavesHealthyInputAlone(t *testing.T) {
	records := mustParse(t,
		turnLine("user", "u1", nil),
		`{"type":"summary","summary":"s","leafUuid":"u1"}`,
		turnLine("assistant", "a1", "u1"),
	)
	out, n, err := AutoRepair(records)
	if err != nil {
		t.Fatalf("auto repair: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no repairs, got %d", n)
	}
	for i := range out {
		if string(out[i].Raw()) != string(records[i].Raw()) {
			t.Fatalf("record %d changed", i)
		}
	}
}

func TestRepairAfterRemovalTransitiveCollapse(t *testing.T) {
	// A -> B -> C -> D with B and C removed must leave A -> D.
	records := mustParse(t,
		turnLine("user", "A", nil),
		turnLine("assistant", "B", "A"),
		turnLine("user", "C", "B"),
		turnLine("assistant", "D", "C"),
	)
	survivors := []session.Record{records[0], records[3]}
	removed := []session.Record{records[1], records[2]}
	out, n, err := RepairAfterRemoval(survivors, removed)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 repair, got %d", n)
	}
	if got := link(t, out[1]).UUID; got != "A" {
		t.Fatalf("D should point at A, got %q", got)
	}
}

func TestRepairAfterRemovalCollapsesToNull(t *testing.T) {
	records := mustParse(t,
		turnLine("user", "A", nil),
		turnLine("assistant", "B", "A"),
	)
	out, n, err := RepairAfterRemoval([]session.Record{records[1]}, []session.Record{records[0]})
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 repair, got %d", n)
	}
	if !link(t, out[0]).IsNull() {
		t.Fatalf("B should become a root: %+v", link(t, out[0]))
	}
}

func TestRepairAfterRemovalTerminatesOnRemovedCycle(t *testing.T) {
	// B and C point at each other, so following former parents through the
	// removed set never reaches a survivor on its own.
	records := mustParse(t,
		turnLine("user", "A", nil),
		turnLine("assistant", "B", "C"),
		turnLine("user", "C", "B"),
		turnLine("assistant", "D", "C"),
	)
	survivors := []session.Record{records[0], records[3]}
	removed := []session.Record{records[1], records[2]}
	out, n, err := RepairAfterRemoval(survivors, removed)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 repair, got %d", n)
	}
	if got := link(t, out[1]).UUID; got != "A" {
		t.Fatalf("D should point at A, got %q", got)
	}
	if report := ValidateChain(out); !report.Valid {
		t.Fatalf("chain invalid after repair: %+v", report)
	}

	// The same cycle with no surviving predecessor collapses to a root.
	out, n, err = RepairAfterRemoval([]session.Record{records[3]}, removed)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 repair, got %d", n)
	}
	if !link(t, out[0]).IsNull() {
		t.Fatalf("D should become a root: %+v", link(t, out[0]))
	}
}

func TestRepairAfterRemovalNoOpWithoutHits(t *testing.T) {
	records := mustParse(t,
		turnLine("user", "A", nil),
		turnLine("assistant", "B", "A"),
	)
	out, n, err := RepairAfterRemoval(records, nil)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if n != 0 || len(out) != 2 {
		t.Fatalf("expected untouched sequence, got n=%d", n)
	}
}
