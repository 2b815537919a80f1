package chain

import "sessionctl/internal/session"

// AutoRepair heals broken and orphaned parent links in one forward pass. A
// later record failing validation is re-pointed at the last record that
// passed; the very first identity bearer is only upgraded from an absent
// parent to an explicit null. Records are never removed. The returned slice
// is freshly built; inputs are not mutated.
func AutoRepair(records []session.Record) ([]session.Record, int, error) {
	ids := knownIDs(records)
	out := make([]session.Record, len(records))
	repaired := 0
	first := true
	lastValid := ""
	for i, rec := range records {
		cr, ok := session.AsChain(rec)
		if !ok {
			out[i] = rec
			continue
		}
		link := cr.Link()
		if first {
			first = false
			if !link.Present {
				fixed, err := session.Reparent(cr, session.NullLink())
				if err != nil {
					return nil, 0, err
				}
				cr = fixed
				repaired++
			}
		} else if !link.Present || link.IsNull() || !ids[link.UUID] {
			target := session.NullLink()
			if lastValid != "" {
				target = session.LinkTo(lastValid)
			}
			fixed, err := session.Reparent(cr, target)
			if err != nil {
				return nil, 0, err
			}
			cr = fixed
			repaired++
		}
		out[i] = cr
		lastValid = cr.Identity()
	}
	return out, repaired, nil
}

// RepairAfterRemoval re-points survivors whose parent was just removed. A
// parent link into the removed set is followed through the removed records'
// own former parents until a surviving id (or null) is reached, so an
// arbitrarily long removed run collapses in one pass and no survivor ever
// points at a record that is gone. Removed records can point at each other;
// such a cycle has no surviving ancestor, and the survivor is re-pointed at
// the nearest preceding surviving record instead, or null when there is none.
func RepairAfterRemoval(records []session.Record, removed []session.Record) ([]session.Record, int, error) {
	formerParent := make(map[string]session.ParentLink, len(removed))
	for _, rec := range removed {
		if cr, ok := session.AsChain(rec); ok {
			formerParent[cr.Identity()] = cr.Link()
		}
	}
	if len(formerParent) == 0 {
		return records, 0, nil
	}

	out := make([]session.Record, len(records))
	repaired := 0
	lastValid := ""
	for i, rec := range records {
		out[i] = rec
		cr, ok := session.AsChain(rec)
		if !ok {
			continue
		}
		link := cr.Link()
		if link.Present && link.UUID != "" {
			if _, hit := formerParent[link.UUID]; hit {
				target := link
				seen := make(map[string]bool, len(formerParent))
				for target.Present && target.UUID != "" {
					next, gone := formerParent[target.UUID]
					if !gone {
						break
					}
					if seen[target.UUID] {
						if lastValid != "" {
							target = session.LinkTo(lastValid)
						} else {
							target = session.NullLink()
						}
						break
					}
					seen[target.UUID] = true
					target = next
				}
				if !target.Present {
					target = session.NullLink()
				}
				fixed, err := session.Reparent(cr, target)
				if err != nil {
					return nil, 0, err
				}
				out[i] = fixed
				repaired++
			}
		}
		lastValid = cr.Identity()
	}
	return out, repaired, nil
}
