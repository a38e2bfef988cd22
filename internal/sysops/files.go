package sysops

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gzhole/netmon/internal/dispatch"
)

// Files is a session-scoped working directory. It never calls os.Chdir, so
// several sessions can share a process.
type Files struct {
	mu  sync.Mutex
	cwd string
}

// NewFiles starts at dir, or the process working directory when dir is empty.
func NewFiles(dir string) (*Files, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Files{cwd: abs}, nil
}

func (f *Files) WorkingDir() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cwd
}

// Getwd has the os.Getwd shape, for callers that resolve relative paths.
func (f *Files) Getwd() (string, error) {
	return f.WorkingDir(), nil
}

func (f *Files) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(f.cwd, path)
}

func (f *Files) ChangeDirectory(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := f.resolve(path)
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	f.cwd = dir
	return dir, nil
}

func (f *Files) ListDirectory(path string) ([]dispatch.DirEntry, error) {
	f.mu.Lock()
	dir := f.resolve(path)
	f.mu.Unlock()

	// ReadDir returns entries sorted by name.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]dispatch.DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, dispatch.DirEntry{
			Name:    e.Name(),
			IsDir:   e.IsDir(),
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}
