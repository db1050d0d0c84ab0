package synclog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"portfolio-sync/internal/types"
)

// Entry is one line of the run journal.
type Entry struct {
	Time       string   `json:"time"`
	RunID      string   `json:"run_id"`
	Holdings   int      `json:"holdings"`
	Failed     int      `json:"failed"`
	Rows       int      `json:"rows"`
	DurationMS int64    `json:"duration_ms"`
	Total      string   `json:"total,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// Journal appends run entries to <dir>/sync/YYYY-MM-DD.txt.
type Journal struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// New uses dir, falling back to SYNC_LOG_DIR and then "logs".
func New(dir string) *Journal {
	if dir == "" {
		dir = os.Getenv("SYNC_LOG_DIR")
	}
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: dir, now: time.Now}
}

// RetentionFromEnv reads SYNC_LOG_RETENTION_DAYS, 0 when unset or invalid.
func RetentionFromEnv() int {
	n, err := strconv.Atoi(os.Getenv("SYNC_LOG_RETENTION_DAYS"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (j *Journal) root() string {
	return filepath.Join(j.dir, "sync")
}

func (j *Journal) dailyFilepath(t time.Time) string {
	return filepath.Join(j.root(), t.UTC().Format("2006-01-02")+".txt")
}

// Record journals a finished run. A nil journal records nothing.
func (j *Journal) Record(s *types.RunSummary, total string) error {
	if j == nil {
		return nil
	}
	return j.Append(Entry{
		RunID:      s.RunID,
		Holdings:   s.Holdings,
		Failed:     s.Failed,
		Rows:       s.Rows,
		DurationMS: s.Duration.Milliseconds(),
		Total:      total,
		Errors:     s.Errors,
	})
}

func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now().UTC()
	e.Time = now.Format(time.RFC3339)
	p := j.dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips journal files not modified for retentionDays and
// removes the originals. Files that fail to compress are left in place.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -retentionDays)

	j.mu.Lock()
	defer j.mu.Unlock()
	return filepath.WalkDir(j.root(), func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}

		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
