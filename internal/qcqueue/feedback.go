package qcqueue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"archivecore.io/core/internal/domain"
)

// feedbackLog writes FeedbackRecords to daily rotating append-only
// files under feedback/qc_feedback_YYYY-MM-DD.jsonl (§6 Persisted
// state layout).
type feedbackLog struct {
	mu   sync.Mutex
	dir  string
	day  string
	file *os.File
}

func newFeedbackLog(dir string) (*feedbackLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &feedbackLog{dir: dir}, nil
}

func (f *feedbackLog) append(rec domain.FeedbackRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	day := rec.Timestamp.Format("2006-01-02")
	if f.file == nil || day != f.day {
		if f.file != nil {
			_ = f.file.Close()
		}
		path := filepath.Join(f.dir, fmt.Sprintf("qc_feedback_%s.jsonl", day))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		f.file = file
		f.day = day
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := f.file.Write(b); err != nil {
		return err
	}
	return f.file.Sync()
}

func (f *feedbackLog) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}

// all replays every daily feedback file under dir, oldest first. The
// feedback stream is small enough (one record per QC decision) that
// scanning it per stats request is simpler than maintaining a running
// aggregate, mirroring the transition log's own replay-on-read style.
func (f *feedbackLog) all() ([]domain.FeedbackRecord, error) {
	f.mu.Lock()
	if f.file != nil {
		_ = f.file.Sync()
	}
	f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []domain.FeedbackRecord
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		for _, line := range splitLines(data) {
			if len(line) == 0 {
				continue
			}
			var rec domain.FeedbackRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
