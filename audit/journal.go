package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yairfalse/vahti/types"
)

// maxJournalBytes triggers rotation to a fresh journal file
const maxJournalBytes = 64 << 20

// JournalEntry is one line in the append-only journal: a sequence
// number wrapped around the audit event it records.
type JournalEntry struct {
	Sequence int64            `json:"sequence"`
	Written  time.Time        `json:"written"`
	Event    types.AuditEvent `json:"event"`
}

// Journal is a tamper-evident, append-only JSON-lines trail of audit
// events. Every append is flushed and synced before returning; the
// sequence number is contiguous across file rotations.
type Journal struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	size     int64
	sequence int64
	dir      string
}

// OpenJournal creates or opens a journal in dir, continuing the
// sequence from existing journal files.
func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	j := &Journal{dir: dir}
	if err := j.loadSequence(); err != nil {
		return nil, err
	}
	if err := j.openSegment(); err != nil {
		return nil, err
	}
	return j, nil
}

// Append writes one audit event to the journal
func (j *Journal) Append(e types.AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.sequence++
	entry := JournalEntry{
		Sequence: j.sequence,
		Written:  time.Now(),
		Event:    e,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling journal entry: %w", err)
	}

	if j.size+int64(len(line))+1 > maxJournalBytes {
		if err := j.rotate(); err != nil {
			return err
		}
	}

	if _, err := j.writer.Write(line); err != nil {
		return fmt.Errorf("writing journal entry: %w", err)
	}
	if err := j.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing journal entry: %w", err)
	}
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("flushing journal: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("syncing journal: %w", err)
	}

	j.size += int64(len(line)) + 1
	return nil
}

// Close flushes and closes the current segment
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.writer != nil {
		if err := j.writer.Flush(); err != nil {
			return err
		}
	}
	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

// Stats summarizes the journal's on-disk state
type Stats struct {
	Segments     int   `json:"segments"`
	TotalBytes   int64 `json:"total_bytes"`
	LastSequence int64 `json:"last_sequence"`
}

// GetStats reports segment count, total size and last sequence
func (j *Journal) GetStats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := Stats{LastSequence: j.sequence}
	for _, path := range j.segments() {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		stats.Segments++
		stats.TotalBytes += info.Size()
	}
	return stats
}

// Replay streams every journaled event recorded after since, in
// sequence order, to handler.
func Replay(dir string, since time.Time, handler func(JournalEntry) error) error {
	paths, err := filepath.Glob(filepath.Join(dir, "vahti-*.journal"))
	if err != nil {
		return fmt.Errorf("listing journal segments: %w", err)
	}

	for _, path := range paths {
		if err := replaySegment(path, since, handler); err != nil {
			return err
		}
	}
	return nil
}

func replaySegment(path string, since time.Time, handler func(JournalEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening journal segment: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return fmt.Errorf("corrupt journal entry in %s: %w", path, err)
		}
		if !entry.Event.Timestamp.After(since) {
			continue
		}
		if err := handler(entry); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (j *Journal) openSegment() error {
	name := fmt.Sprintf("vahti-%s.journal", time.Now().Format("20060102-150405.000"))
	path := filepath.Join(j.dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening journal segment: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat journal segment: %w", err)
	}

	j.file = file
	j.writer = bufio.NewWriter(file)
	j.size = info.Size()
	return nil
}

func (j *Journal) rotate() error {
	if err := j.writer.Flush(); err != nil {
		return err
	}
	if err := j.file.Close(); err != nil {
		return err
	}
	return j.openSegment()
}

// loadSequence recovers the highest sequence number from existing
// segments so appends stay contiguous across restarts.
func (j *Journal) loadSequence() error {
	for _, path := range j.segments() {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening journal segment: %w", err)
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var entry JournalEntry
			if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
				// a torn final write is tolerated, anything past it is not readable anyway
				break
			}
			if entry.Sequence > j.sequence {
				j.sequence = entry.Sequence
			}
		}
		err = scanner.Err()
		f.Close()
		if err != nil && err != io.EOF {
			return fmt.Errorf("scanning journal segment %s: %w", path, err)
		}
	}
	return nil
}

func (j *Journal) segments() []string {
	paths, err := filepath.Glob(filepath.Join(j.dir, "vahti-*.journal"))
	if err != nil {
		return nil
	}
	return paths
}
