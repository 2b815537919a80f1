package session

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"sessionctl/internal/logging"
)

const (
	logExt          = ".jsonl"
	sidechainPrefix = "agent-"
	todoExt         = ".json"
	todoAgentSep    = "-agent-"
)

// Store reads and writes session logs underneath a projects root.
//
// Layout:
//
//	<root>/<project>/<sessionID>.jsonl          primary log
//	<root>/<project>/agent-<id>.jsonl           sidechain log
//	<root>/<project>/<sessionID>/agent-*.jsonl  sidechain logs, nested form
//	<todos>/<sessionID>-agent-<agentID>.json    todo list
//
// The unit of mutation is one whole file; callers must not run two mutating
// operations against the same log concurrently.
type Store struct {
	Root      string
	TodosRoot string
	// BackupDirName is created next to a file on MoveToBackup.
	BackupDirName string
	Logger        logging.Logger
}

func NewStore(root, todosRoot string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{Root: root, TodosRoot: todosRoot, BackupDirName: ".bak", Logger: logger}
}

func (s *Store) ProjectDir(project string) string {
	return filepath.Join(s.Root, project)
}

func (s *Store) SessionPath(project, sessionID string) string {
	return filepath.Join(s.Root, project, sessionID+logExt)
}

// Projects lists the project directories under the root.
func (s *Store) Projects() ([]string, error) {
	ents, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() && e.Name() != s.BackupDirName {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// SessionIDs lists the primary session logs of a project.
func (s *Store) SessionIDs(project string) ([]string, error) {
	ents, err := os.ReadDir(s.ProjectDir(project))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, logExt) || strings.HasPrefix(name, sidechainPrefix) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, logExt))
	}
	sort.Strings(out)
	return out, nil
}

// SidechainLogs lists sidechain log paths of a project, both the flat form
// at the project root and the nested per-session form.
func (s *Store) SidechainLogs(project string) ([]string, error) {
	dir := s.ProjectDir(project)
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() {
			if name == s.BackupDirName {
				continue
			}
			nested, err := os.ReadDir(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			for _, n := range nested {
				if !n.IsDir() && strings.HasPrefix(n.Name(), sidechainPrefix) && strings.HasSuffix(n.Name(), logExt) {
					out = append(out, filepath.Join(dir, name, n.Name()))
				}
			}
			continue
		}
		if strings.HasPrefix(name, sidechainPrefix) && strings.HasSuffix(name, logExt) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadLog decodes every line of a log. The first undecodable line aborts the
// read with its file path and 1-based line number.
func (s *Store) ReadLog(path string) ([]Record, error) {
	return s.readLog(path, true)
}

// ReadLogLenient decodes what it can, skipping bad lines with a warning.
func (s *Store) ReadLogLenient(path string) ([]Record, error) {
	return s.readLog(path, false)
}

func (s *Store) readLog(path string, strict bool) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 32*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			if strict {
				return nil, fmt.Errorf("parse %s: line %d: %w", path, lineNo, err)
			}
			s.Logger.Warn("skipping unparseable line", map[string]interface{}{
				"path": path,
				"line": lineNo,
			})
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// WriteLog writes the whole record sequence back, one raw line per record.
func (s *Store) WriteLog(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, rec := range records {
		buf.Write(rec.Raw())
		buf.WriteByte('\n')
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// OwnerSession reads the sessionId declared by the first non-empty line.
func (s *Store) OwnerSession(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 32*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		return gjson.GetBytes(line, "sessionId").String(), sc.Err()
	}
	return "", sc.Err()
}

// CountLines counts the non-empty lines of a file.
func (s *Store) CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 32*1024*1024)
	n := 0
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			n++
		}
	}
	return n, sc.Err()
}

// MoveToBackup moves path into the backup sub-directory next to it,
// preserving the file name. The backup directory is created idempotently.
func (s *Store) MoveToBackup(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errors.New("source not found")
		}
		return "", err
	}
	backupDir := filepath.Join(filepath.Dir(path), s.BackupDirName)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(backupDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// MoveSession relocates a primary log (and its nested sidechain folder, when
// present) into another project.
func (s *Store) MoveSession(fromProject, toProject, sessionID string) error {
	src := s.SessionPath(fromProject, sessionID)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("source not found")
		}
		return err
	}
	dst := s.SessionPath(toProject, sessionID)
	if _, err := os.Stat(dst); err == nil {
		return errors.New("session already exists at destination")
	}
	if err := os.MkdirAll(s.ProjectDir(toProject), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return err
	}
	srcDir := filepath.Join(s.ProjectDir(fromProject), sessionID)
	if fi, err := os.Stat(srcDir); err == nil && fi.IsDir() {
		if err := os.Rename(srcDir, filepath.Join(s.ProjectDir(toProject), sessionID)); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDirIfEmpty removes dir when it holds no entries. Returns whether it
// was removed. Refuses to touch anything at or above the store roots.
func (s *Store) RemoveDirIfEmpty(dir string) (bool, error) {
	clean := filepath.Clean(dir)
	if clean == filepath.Clean(s.Root) || clean == filepath.Clean(s.TodosRoot) {
		return false, nil
	}
	rel, err := filepath.Rel(s.Root, clean)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false, nil
	}
	ents, err := os.ReadDir(clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if len(ents) > 0 {
		return false, nil
	}
	if err := os.Remove(clean); err != nil {
		return false, err
	}
	return true, nil
}

// TodoFiles lists the todo store's files.
func (s *Store) TodoFiles() ([]string, error) {
	ents, err := os.ReadDir(s.TodosRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), todoExt) {
			out = append(out, filepath.Join(s.TodosRoot, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// TodoOwner extracts the owning session id from a todo file name
// (<sessionID>-agent-<agentID>.json, or plain <sessionID>.json).
func TodoOwner(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), todoExt)
	if i := strings.Index(name, todoAgentSep); i >= 0 {
		return name[:i]
	}
	return name
}
