package chain

import "sessionctl/internal/session"

// TargetKind optionally narrows what a delete target identifier may match.
// The same identifier can legitimately appear as a turn's uuid and as a
// snapshot's messageId; callers hitting that collision pass an explicit kind.
type TargetKind int

const (
	TargetAny TargetKind = iota
	TargetRecord
	TargetSnapshot
)

type DeleteResult struct {
	// Deleted is the record matching the target identifier.
	Deleted session.Record
	// Coupled are additional records removed to keep tool pairing intact.
	Coupled []session.Record
	// Records is the surviving, repaired sequence.
	Records  []session.Record
	Repaired int
}

// DeleteWithRepair removes the record identified by target plus any records
// coupled to it by tool pairing, then repairs the remaining chain. The
// second return is false when nothing matched.
//
// Resolution order without a kind hint: chain uuid, then summary leafUuid,
// then snapshot messageId.
func DeleteWithRepair(records []session.Record, target string, kind TargetKind) (*DeleteResult, bool, error) {
	idx := findTarget(records, target, kind)
	if idx < 0 {
		return nil, false, nil
	}

	deleted := records[idx]
	removedIdx := map[int]bool{idx: true}

	// Deleting an assistant turn that requested tool calls leaves their
	// results dangling; take those records with it.
	var coupled []session.Record
	if t, ok := deleted.(*session.Turn); ok && t.Type == session.KindAssistant {
		uses := make(map[string]bool)
		for _, id := range t.ToolUseIDs() {
			uses[id] = true
		}
		if len(uses) > 0 {
			for i, rec := range records {
				if removedIdx[i] {
					continue
				}
				other, ok := rec.(*session.Turn)
				if !ok {
					continue
				}
				for _, id := range other.ToolResultIDs() {
					if uses[id] {
						removedIdx[i] = true
						coupled = append(coupled, rec)
						break
					}
				}
			}
		}
	}

	survivors := make([]session.Record, 0, len(records)-len(removedIdx))
	removed := make([]session.Record, 0, len(removedIdx))
	for i, rec := range records {
		if removedIdx[i] {
			removed = append(removed, rec)
		} else {
			survivors = append(survivors, rec)
		}
	}

	repairedRecords, repaired, err := RepairAfterRemoval(survivors, removed)
	if err != nil {
		return nil, false, err
	}
	return &DeleteResult{
		Deleted:  deleted,
		Coupled:  coupled,
		Records:  repairedRecords,
		Repaired: repaired,
	}, true, nil
}

func findTarget(records []session.Record, target string, kind TargetKind) int {
	if kind != TargetSnapshot {
		for i, rec := range records {
			if cr, ok := session.AsChain(rec); ok && cr.Identity() == target {
				return i
			}
		}
		for i, rec := range records {
			if sum, ok := rec.(*session.Summary); ok && sum.LeafUUID == target {
				return i
			}
		}
	}
	if kind != TargetRecord {
		for i, rec := range records {
			if snap, ok := rec.(*session.Snapshot); ok && snap.MessageID == target {
				return i
			}
		}
	}
	return -1
}
