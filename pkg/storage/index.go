package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"douyindl/pkg/media"
	"douyindl/pkg/naming"
)

// Mode selects which evidence marks a task as already downloaded
type Mode string

const (
	ModeFilesystem Mode = "filesystem"
	ModeLog        Mode = "log"
	ModeBoth       Mode = "both"
)

// ParseMode maps a config value to a Mode, defaulting to ModeFilesystem
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLog:
		return ModeLog
	case ModeBoth:
		return ModeBoth
	default:
		return ModeFilesystem
	}
}

const (
	// StateDir is the hidden directory inside a user folder that holds resume state
	StateDir = ".douyindl"
	// SuccessLog is the success log file name inside StateDir
	SuccessLog = "success.log"

	statConcurrency = 16
)

// LogPath returns the success log location for a user folder
func LogPath(userFolder string) string {
	return filepath.Join(userFolder, StateDir, SuccessLog)
}

// Index is the set of relative paths known to be downloaded. Paths are
// slash separated and relative to the user folder.
type Index struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{paths: make(map[string]struct{})}
}

// Load reads a success log; a missing file yields an empty index
func Load(logPath string) (*Index, error) {
	idx := NewIndex()

	f, err := os.Open(logPath)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open success log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		idx.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read success log: %w", err)
	}
	return idx, nil
}

func normalize(rel string) string {
	return strings.TrimSpace(filepath.ToSlash(rel))
}

// Add records a relative path
func (i *Index) Add(rel string) {
	rel = normalize(rel)
	if rel == "" {
		return
	}
	i.mu.Lock()
	i.paths[rel] = struct{}{}
	i.mu.Unlock()
}

// AddAll records every path
func (i *Index) AddAll(rels []string) {
	for _, rel := range rels {
		i.Add(rel)
	}
}

// Contains reports whether rel is recorded
func (i *Index) Contains(rel string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.paths[normalize(rel)]
	return ok
}

// Len returns the number of recorded paths
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.paths)
}

// Paths returns the recorded paths sorted
func (i *Index) Paths() []string {
	i.mu.RLock()
	out := make([]string, 0, len(i.paths))
	for p := range i.paths {
		out = append(out, p)
	}
	i.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Save rewrites the log with the union of its current content and the index.
// The file is replaced atomically.
func (i *Index) Save(logPath string) error {
	onDisk, err := Load(logPath)
	if err != nil {
		return err
	}
	onDisk.AddAll(i.Paths())

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tempFile := logPath + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	w := bufio.NewWriter(out)
	for _, p := range onDisk.Paths() {
		w.WriteString(p)
		w.WriteByte('\n')
	}
	err = w.Flush()
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write success log: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, logPath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// Filter splits tasks into those already satisfied and those still to
// download, comparing only naming.ExpectedPath. Order is preserved in both.
func (i *Index) Filter(ctx context.Context, root string, tasks []media.Task, mode Mode) (done, todo []media.Task, err error) {
	if mode == ModeLog && i.Len() == 0 {
		return nil, tasks, nil
	}

	satisfied := make([]bool, len(tasks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(statConcurrency)
	for n, t := range tasks {
		n, t := n, t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rel := naming.ExpectedPath(t)
			switch mode {
			case ModeLog:
				satisfied[n] = i.Contains(rel)
			case ModeBoth:
				satisfied[n] = i.Contains(rel) || fileExists(root, rel)
			default:
				satisfied[n] = fileExists(root, rel)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for n, t := range tasks {
		if satisfied[n] {
			done = append(done, t)
		} else {
			todo = append(todo, t)
		}
	}
	return done, todo, nil
}

func fileExists(root, rel string) bool {
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil && !info.IsDir()
}
