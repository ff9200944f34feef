package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pressroom/internal/config"
)

const (
	runLogPrefix  = "pressroom-"
	runLogSuffix  = ".log"
	runLogPointer = "pressroom.log"
)

// NewRunLogger opens a fresh log file for one daemon run under the configured
// log directory, mirrors it to stdout, and points pressroom.log at it. Older
// run logs beyond logging.retention_runs are removed. An empty level falls
// back to the configured one.
func NewRunLogger(cfg *config.Config, level string, development bool) (*slog.Logger, string, error) {
	if cfg == nil || cfg.Paths.LogDir == "" {
		logger, err := New(Options{Level: level, Format: "auto", Development: development})
		return logger, "", err
	}
	if level == "" {
		level = cfg.Logging.Level
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	path := filepath.Join(cfg.Paths.LogDir, runLogPrefix+runID+runLogSuffix)

	logger, err := New(Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", path},
		Development: development,
	})
	if err != nil {
		return nil, "", err
	}
	if err := pointAt(cfg.Paths.LogDir, path); err != nil {
		logger.Warn("log pointer not updated", Error(err))
	}
	if removed := pruneRunLogs(cfg.Paths.LogDir, path, cfg.Logging.RetentionRuns); removed > 0 {
		logger.Debug("pruned old run logs", Int("removed", removed))
	}
	return logger, path, nil
}

func pointAt(dir, target string) error {
	pointer := filepath.Join(dir, runLogPointer)
	if err := os.Remove(pointer); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", pointer, err)
	}
	if err := os.Symlink(target, pointer); err == nil {
		return nil
	}
	if err := os.Link(target, pointer); err != nil {
		return fmt.Errorf("link %s: %w", pointer, err)
	}
	return nil
}

// pruneRunLogs keeps the newest keep run logs. Run ids sort by time, so
// names sort the same way. current is never removed.
func pruneRunLogs(dir, current string, keep int) int {
	if keep <= 0 {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var runs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasPrefix(name, runLogPrefix) && strings.HasSuffix(name, runLogSuffix) {
			runs = append(runs, name)
		}
	}
	if len(runs) <= keep {
		return 0
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))
	removed := 0
	for _, name := range runs[keep:] {
		full := filepath.Join(dir, name)
		if full == current {
			continue
		}
		if os.Remove(full) == nil {
			removed++
		}
	}
	return removed
}
