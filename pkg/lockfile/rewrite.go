package lockfile

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/lockmirror/pkg/errors"
)

// Document is an npm lockfile held for editing. Fields this package does
// not touch are carried through verbatim.
type Document struct {
	top      map[string]json.RawMessage
	packages map[string]map[string]json.RawMessage
}

// ParseDocument decodes an npm lockfile for editing.
func ParseDocument(data []byte) (*Document, error) {
	d := &Document{}
	if err := json.Unmarshal(data, &d.top); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedLockfile, err, "decode npm lockfile")
	}
	if d.top == nil {
		return nil, errors.New(errors.ErrCodeMalformedLockfile, "npm lockfile is not an object")
	}
	if raw, ok := d.top["packages"]; ok {
		if err := json.Unmarshal(raw, &d.packages); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformedLockfile, err, "decode packages table")
		}
	}
	return d, nil
}

// Len returns the number of entries in the packages table.
func (d *Document) Len() int { return len(d.packages) }

// Entry returns the raw fields of one packages entry.
func (d *Document) Entry(key string) (map[string]json.RawMessage, bool) {
	e, ok := d.packages[key]
	return e, ok
}

// RemovePhantoms deletes placeholder entries: non-root entries with no
// version, resolved URL, integrity hash or link marker. It returns the
// removed keys in sorted order.
func (d *Document) RemovePhantoms() []string {
	var removed []string
	for key, entry := range d.packages {
		if key == "" {
			continue
		}
		if strings.TrimSpace(stringField(entry, "version")) != "" ||
			stringField(entry, "resolved") != "" ||
			stringField(entry, "integrity") != "" ||
			boolField(entry, "link") {
			continue
		}
		removed = append(removed, key)
	}
	for _, key := range removed {
		delete(d.packages, key)
	}
	slices.Sort(removed)
	return removed
}

// RewriteResolved points the resolved URL of every versioned entry at
// base and returns how many entries were rewritten. Scoped names are
// encoded as a single path segment.
func (d *Document) RewriteResolved(base string) int {
	n := 0
	for key, entry := range d.packages {
		if key == "" {
			continue
		}
		version := strings.TrimSpace(stringField(entry, "version"))
		name := PackageNameFromKey(key)
		if version == "" || name == "" {
			continue
		}
		if strings.HasPrefix(name, "@") && !strings.Contains(name, "/") {
			continue
		}
		raw, _ := marshalNoEscape(TarballURL(base, name, version))
		entry["resolved"] = raw
		n++
	}
	return n
}

// Bytes encodes the document with two-space indentation. Non-ASCII text
// and HTML characters are written as-is.
func (d *Document) Bytes() ([]byte, error) {
	if d.packages != nil {
		raw, err := marshalNoEscape(d.packages)
		if err != nil {
			return nil, err
		}
		d.top["packages"] = raw
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.top); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RewriteStats summarizes a [RewriteFile] call.
type RewriteStats struct {
	Phantoms  []string
	Rewritten int
}

// RewriteFile removes phantom entries from the npm lockfile at path and
// points every resolved URL at base, writing the result back in place.
func RewriteFile(path, base string) (RewriteStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RewriteStats{}, errors.Wrap(errors.ErrCodeNoLockfile, err, "read %s", path)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return RewriteStats{}, err
	}
	stats := RewriteStats{
		Phantoms:  doc.RemovePhantoms(),
		Rewritten: doc.RewriteResolved(base),
	}
	out, err := doc.Bytes()
	if err != nil {
		return stats, errors.Wrap(errors.ErrCodeInternal, err, "encode %s", path)
	}
	return stats, writeFileAtomic(path, out)
}

// Snapshot holds the original content of a lockfile so it can be restored
// after the file was rewritten. A copy is also kept on disk next to the
// lockfile until [Snapshot.Restore] succeeds.
type Snapshot struct {
	path   string
	backup string
	data   []byte
	mode   os.FileMode
}

// BackupSuffix is appended to the lockfile name for the on-disk copy.
const BackupSuffix = ".lockmirror-backup"

// TakeSnapshot reads path and writes its backup copy.
func TakeSnapshot(path string) (*Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNoLockfile, err, "stat %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNoLockfile, err, "read %s", path)
	}
	s := &Snapshot{path: path, backup: path + BackupSuffix, data: data, mode: info.Mode().Perm()}
	if err := os.WriteFile(s.backup, data, s.mode); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "write backup %s", s.backup)
	}
	return s, nil
}

// Path returns the lockfile path.
func (s *Snapshot) Path() string { return s.path }

// BackupPath returns the on-disk backup path.
func (s *Snapshot) BackupPath() string { return s.backup }

// Restore writes the original content back and removes the backup.
func (s *Snapshot) Restore() error {
	if err := os.WriteFile(s.path, s.data, s.mode); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "restore %s", s.path)
	}
	if err := os.Remove(s.backup); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "remove backup %s", s.backup)
	}
	return nil
}

// RestoreBackup moves the on-disk backup of path back in place. It recovers
// a lockfile left rewritten by a run that was killed before restoring it.
func RestoreBackup(path string) error {
	backup := path + BackupSuffix
	data, err := os.ReadFile(backup)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(errors.ErrCodeNotFound, err, "no backup for %s", path)
		}
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", backup)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	if err := os.Remove(backup); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "remove backup %s", backup)
	}
	return nil
}

func stringField(entry map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := entry[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func boolField(entry map[string]json.RawMessage, key string) bool {
	var b bool
	if raw, ok := entry[key]; ok {
		_ = json.Unmarshal(raw, &b)
	}
	return b
}

func marshalNoEscape(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lockmirror-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	return nil
}
