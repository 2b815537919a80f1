package project

import (
	"os"
	"path/filepath"

	"sessionctl/internal/logging"
	"sessionctl/internal/session"
)

type OrphanKind string

const (
	OrphanSidechain OrphanKind = "sidechain"
	OrphanTodo      OrphanKind = "todo"
)

// Orphan is an auxiliary file whose owning session log no longer exists.
type Orphan struct {
	Path    string     `json:"path"`
	Session string     `json:"session"`
	Kind    OrphanKind `json:"kind"`
	Lines   int        `json:"lines"`
}

type CleanupReport struct {
	Deleted        int `json:"deleted"`
	BackedUp       int `json:"backed_up"`
	FoldersRemoved int `json:"folders_removed"`
}

type Janitor struct {
	Store  *session.Store
	Logger logging.Logger
	// Threshold is the maximum non-empty line count for an orphaned
	// sidechain log to be considered handshake-only and deleted outright.
	Threshold int
}

func NewJanitor(store *session.Store, threshold int) *Janitor {
	return &Janitor{Store: store, Logger: store.Logger, Threshold: threshold}
}

// FindOrphans lists the sidechain logs of a project whose declared owning
// session has no primary log.
func (j *Janitor) FindOrphans(project string) ([]Orphan, error) {
	ids, err := j.Store.SessionIDs(project)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	paths, err := j.Store.SidechainLogs(project)
	if err != nil {
		return nil, err
	}
	var orphans []Orphan
	for _, path := range paths {
		owner, err := j.Store.OwnerSession(path)
		if err != nil {
			j.Logger.Warn("unreadable sidechain log", map[string]interface{}{
				"path": path, "error": err.Error(),
			})
			continue
		}
		if owner == "" || known[owner] {
			continue
		}
		lines, err := j.Store.CountLines(path)
		if err != nil {
			continue
		}
		orphans = append(orphans, Orphan{
			Path:    path,
			Session: owner,
			Kind:    OrphanSidechain,
			Lines:   lines,
		})
	}
	return orphans, nil
}

// FindOrphanTodos lists todo files whose session exists in no project.
func (j *Janitor) FindOrphanTodos() ([]Orphan, error) {
	projects, err := j.Store.Projects()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool)
	for _, p := range projects {
		ids, err := j.Store.SessionIDs(p)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			known[id] = true
		}
	}

	paths, err := j.Store.TodoFiles()
	if err != nil {
		return nil, err
	}
	var orphans []Orphan
	for _, path := range paths {
		owner := session.TodoOwner(path)
		if owner == "" || known[owner] {
			continue
		}
		orphans = append(orphans, Orphan{Path: path, Session: owner, Kind: OrphanTodo})
	}
	return orphans, nil
}

// Cleanup retires the given orphans. Handshake-only sidechain logs (at or
// below the threshold) are deleted permanently; everything else moves to the
// backup directory next to its original location. Per-session subfolders
// emptied by a deletion are pruned, then their parents.
func (j *Janitor) Cleanup(orphans []Orphan) (CleanupReport, error) {
	var report CleanupReport
	for _, o := range orphans {
		switch o.Kind {
		case OrphanSidechain:
			if o.Lines <= j.Threshold {
				if err := os.Remove(o.Path); err != nil {
					j.Logger.Warn("delete failed", map[string]interface{}{
						"path": o.Path, "error": err.Error(),
					})
					continue
				}
				report.Deleted++
				report.FoldersRemoved += j.pruneEmptyDirs(filepath.Dir(o.Path))
			} else {
				if _, err := j.Store.MoveToBackup(o.Path); err != nil {
					j.Logger.Warn("backup failed", map[string]interface{}{
						"path": o.Path, "error": err.Error(),
					})
					continue
				}
				report.BackedUp++
			}
		case OrphanTodo:
			if _, err := j.Store.MoveToBackup(o.Path); err != nil {
				j.Logger.Warn("backup failed", map[string]interface{}{
					"path": o.Path, "error": err.Error(),
				})
				continue
			}
			report.BackedUp++
		}
	}
	j.Logger.Info("orphan cleanup finished", map[string]interface{}{
		"deleted":         report.Deleted,
		"backed_up":       report.BackedUp,
		"folders_removed": report.FoldersRemoved,
	})
	return report, nil
}

func (j *Janitor) pruneEmptyDirs(dir string) int {
	removed := 0
	for i := 0; i < 2; i++ {
		ok, err := j.Store.RemoveDirIfEmpty(dir)
		if err != nil || !ok {
			break
		}
		removed++
		dir = filepath.Dir(dir)
	}
	return removed
}
