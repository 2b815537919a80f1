// Package chain checks and heals the parent-pointer linkage of one session
// log. All functions are pure over in-memory record sequences; findings are
// data, never errors.
package chain

import "sessionctl/internal/session"

type FindingType string

const (
	FindingBrokenChain      FindingType = "broken_chain"
	FindingOrphanParent     FindingType = "orphan_parent"
	FindingOrphanToolResult FindingType = "orphan_tool_result"
	FindingUnwantedProgress FindingType = "unwanted_progress"
)

// Finding is one structural defect. Line is the record's 1-based position in
// the sequence handed to the validator.
type Finding struct {
	Type   FindingType `json:"type"`
	UUID   string      `json:"uuid,omitempty"`
	Line   int         `json:"line"`
	Parent string      `json:"parent,omitempty"`
	Event  string      `json:"event,omitempty"`
}

type Report struct {
	Valid    bool      `json:"valid"`
	Findings []Finding `json:"findings,omitempty"`
}

// Hook events that only mark session lifecycle noise; their records are
// candidates for removal.
var noiseEvents = map[string]bool{
	"Stop":         true,
	"SessionStart": true,
}

func knownIDs(records []session.Record) map[string]bool {
	ids := make(map[string]bool, len(records))
	for _, rec := range records {
		if cr, ok := session.AsChain(rec); ok {
			ids[cr.Identity()] = true
		}
	}
	return ids
}

// ValidateChain walks the identity-bearing records in order and checks their
// parent links. The first bearer may carry any parent except an absent one
// (post-compaction restarts point at records that no longer exist here);
// every later bearer must point at a known id.
func ValidateChain(records []session.Record) Report {
	ids := knownIDs(records)
	var findings []Finding
	first := true
	for i, rec := range records {
		cr, ok := session.AsChain(rec)
		if !ok {
			continue
		}
		link := cr.Link()
		if first {
			first = false
			if !link.Present {
				findings = append(findings, Finding{
					Type: FindingBrokenChain,
					UUID: cr.Identity(),
					Line: i + 1,
				})
			}
			continue
		}
		if !link.Present || link.IsNull() {
			findings = append(findings, Finding{
				Type: FindingBrokenChain,
				UUID: cr.Identity(),
				Line: i + 1,
			})
			continue
		}
		if !ids[link.UUID] {
			findings = append(findings, Finding{
				Type:   FindingOrphanParent,
				UUID:   cr.Identity(),
				Line:   i + 1,
				Parent: link.UUID,
			})
		}
	}
	return Report{Valid: len(findings) == 0, Findings: findings}
}

// ValidateToolPairing flags every tool_result whose tool_use id appears
// nowhere in the log. Pairing is log-local by design.
func ValidateToolPairing(records []session.Record) []Finding {
	uses := make(map[string]bool)
	for _, rec := range records {
		if t, ok := rec.(*session.Turn); ok {
			for _, id := range t.ToolUseIDs() {
				uses[id] = true
			}
		}
	}
	var findings []Finding
	for i, rec := range records {
		t, ok := rec.(*session.Turn)
		if !ok {
			continue
		}
		for _, id := range t.ToolResultIDs() {
			if !uses[id] {
				findings = append(findings, Finding{
					Type:   FindingOrphanToolResult,
					UUID:   t.UUID,
					Line:   i + 1,
					Parent: id,
				})
			}
		}
	}
	return findings
}

// FindUnwantedProgress flags progress records whose hook event is lifecycle
// noise.
func FindUnwantedProgress(records []session.Record) []Finding {
	var findings []Finding
	for i, rec := range records {
		p, ok := rec.(*session.Progress)
		if !ok || !noiseEvents[p.HookEvent] {
			continue
		}
		findings = append(findings, Finding{
			Type:  FindingUnwantedProgress,
			UUID:  p.UUID,
			Line:  i + 1,
			Event: p.HookEvent,
		})
	}
	return findings
}

// Validate runs all three validators and merges their findings.
func Validate(records []session.Record) Report {
	report := ValidateChain(records)
	report.Findings = append(report.Findings, ValidateToolPairing(records)...)
	report.Findings = append(report.Findings, FindUnwantedProgress(records)...)
	report.Valid = len(report.Findings) == 0
	return report
}
