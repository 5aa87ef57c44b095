/*
diagnose.go - Lock-contention diagnostics

PURPOSE:
  When the store stays locked past the retry budget, the operator needs
  to know WHY: is a -wal/-journal file left behind, are permissions
  wrong, which process is holding the file. Diagnose gathers that into
  a report attached to ledger.StoreUnavailableError.

  The report is for error messages only. Nothing here remediates
  anything automatically.
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Holder is a process found holding the database file open.
type Holder struct {
	PID  int32
	Name string
}

// Diagnosis is a best-effort snapshot of the store file's lock state.
type Diagnosis struct {
	Path        string
	Exists      bool
	Writable    bool
	LockFiles   []string
	Holders     []Holder
	JournalMode string
	Notes       []string
}

// Diagnose inspects the database file at path. Every probe is best-effort:
// a failed probe adds a note instead of aborting the diagnosis.
func Diagnose(path string) Diagnosis {
	d := Diagnosis{Path: path}

	if path == ":memory:" {
		d.Notes = append(d.Notes, "in-memory database, nothing to inspect")
		return d
	}

	if _, err := os.Stat(path); err != nil {
		d.Notes = append(d.Notes, "database file does not exist")
		return d
	}
	d.Exists = true

	if f, err := os.OpenFile(path, os.O_RDWR, 0); err == nil {
		d.Writable = true
		f.Close()
	}

	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if _, err := os.Stat(path + suffix); err == nil {
			d.LockFiles = append(d.LockFiles, path+suffix)
		}
	}

	d.Holders = findHolders(path, &d.Notes)

	// Read-only probe so the diagnosis itself never takes the lock.
	if db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro"); err == nil {
		var mode string
		if qErr := db.QueryRow("PRAGMA journal_mode").Scan(&mode); qErr == nil {
			d.JournalMode = mode
		} else {
			d.Notes = append(d.Notes, "journal-mode probe failed: "+qErr.Error())
		}
		db.Close()
	}

	return d
}

// findHolders scans running processes for open handles on the database
// file. Processes we may not inspect are skipped silently.
func findHolders(path string, notes *[]string) []Holder {
	procs, err := process.Processes()
	if err != nil {
		*notes = append(*notes, "process scan failed: "+err.Error())
		return nil
	}

	var holders []Holder
	for _, p := range procs {
		files, err := p.OpenFiles()
		if err != nil {
			continue
		}
		for _, f := range files {
			if !strings.Contains(f.Path, path) {
				continue
			}
			name, _ := p.Name()
			holders = append(holders, Holder{PID: p.Pid, Name: name})
			break
		}
	}
	return holders
}

// Report renders the diagnosis as an operator-facing message.
func (d Diagnosis) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "store diagnosis for %s:", d.Path)

	if d.Exists && !d.Writable {
		b.WriteString("\n  - file is not writable by this process")
	}
	for _, lf := range d.LockFiles {
		fmt.Fprintf(&b, "\n  - lock file present: %s", lf)
	}
	for _, h := range d.Holders {
		fmt.Fprintf(&b, "\n  - held open by PID %d (%s)", h.PID, h.Name)
	}
	if d.JournalMode != "" {
		fmt.Fprintf(&b, "\n  - journal mode: %s", d.JournalMode)
	}
	for _, n := range d.Notes {
		fmt.Fprintf(&b, "\n  - %s", n)
	}
	if d.Exists && d.Writable && len(d.LockFiles) == 0 && len(d.Holders) == 0 && len(d.Notes) == 0 {
		b.WriteString("\n  - no obvious problem found")
	}
	return b.String()
}
