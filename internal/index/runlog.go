package index

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

const runLogFile = "runs.jsonl"

// writeRunLog appends the run summary to the state directory as one
// JSON line. Failures are logged, never fatal.
func (e *Engine) writeRunLog(stats *RunStats) {
	stateDir := e.cfg.StateDir()
	if stateDir == "" {
		return
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		e.logger.Warn("cannot create state directory for run log", slog.String("error", err.Error()))
		return
	}

	path := filepath.Join(stateDir, runLogFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		e.logger.Warn("cannot open run log", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = f.Close() }()

	line, err := json.Marshal(stats)
	if err != nil {
		e.logger.Warn("cannot encode run stats", slog.String("error", err.Error()))
		return
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		e.logger.Warn("cannot write run log", slog.String("error", err.Error()))
	}
}

// LastRun returns the most recent run summary from the state
// directory, or nil if no run has been recorded.
func LastRun(stateDir string) (*RunStats, error) {
	f, err := os.Open(filepath.Join(stateDir, runLogFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var last string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			last = line
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if last == "" {
		return nil, nil
	}

	var stats RunStats
	if err := json.Unmarshal([]byte(last), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
