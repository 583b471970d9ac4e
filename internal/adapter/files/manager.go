// Package files gives sandboxed access to the files of the indexed project.
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/arturoeanton/go-codebase-assistant/internal/port"
)

// TreeNode is one entry of the project file tree.
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Type     string      `json:"type"` // dir, file
	Children []*TreeNode `json:"children,omitempty"`
}

// FileContent is the result of a read.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Lines   int    `json:"lines"`
	Size    int64  `json:"size"`
}

// WriteResult is the result of a write.
type WriteResult struct {
	Path   string `json:"path"`
	Action string `json:"action"` // created, updated
	Lines  int    `json:"lines"`
	Size   int64  `json:"size"`
}

// Manager reads and edits files below a project root. Every path it accepts
// is relative to the root and must resolve inside it.
type Manager struct {
	mu     sync.RWMutex
	root   string
	ignore map[string]bool
}

// NewManager creates a manager with no root. ignore lists directory names hidden from Tree.
func NewManager(ignore ...string) *Manager {
	m := &Manager{ignore: make(map[string]bool, len(ignore))}
	for _, name := range ignore {
		m.ignore[name] = true
	}
	return m
}

// SetRoot sets the project root.
func (m *Manager) SetRoot(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	m.mu.Lock()
	m.root = abs
	m.mu.Unlock()
	return nil
}

// ClearRoot forgets the project root.
func (m *Manager) ClearRoot() {
	m.mu.Lock()
	m.root = ""
	m.mu.Unlock()
}

// Root returns the project root, or "" when none is set.
func (m *Manager) Root() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

func (m *Manager) safePath(rel string) (string, error) {
	root := m.Root()
	if root == "" {
		return "", port.ErrNoProjectRoot
	}
	return Resolve(root, rel)
}

// safeEntry is safePath for operations that must not touch the root itself.
func (m *Manager) safeEntry(rel string) (string, error) {
	root := m.Root()
	if root == "" {
		return "", port.ErrNoProjectRoot
	}
	path, isRoot, err := resolve(root, rel)
	if err != nil {
		return "", err
	}
	if isRoot {
		return "", fmt.Errorf("%w: %s is the project root", port.ErrPermission, rel)
	}
	return path, nil
}

// Resolve joins rel onto root and returns the resulting path with symlinks
// resolved. It fails with port.ErrPermission when that path falls outside root.
func Resolve(root, rel string) (string, error) {
	path, _, err := resolve(root, rel)
	return path, err
}

func resolve(root, rel string) (string, bool, error) {
	base, err := filepath.Abs(root)
	if err != nil {
		return "", false, fmt.Errorf("resolve root: %w", err)
	}
	if real, err := filepath.EvalSymlinks(base); err == nil {
		base = real
	}

	target, err := evalExisting(filepath.Join(base, rel))
	if err != nil {
		return "", false, fmt.Errorf("resolve %s: %w", rel, err)
	}
	r, err := filepath.Rel(base, target)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || filepath.IsAbs(r) {
		return "", false, fmt.Errorf("%w: %s", port.ErrPermission, rel)
	}
	return target, r == ".", nil
}

// evalExisting resolves symlinks in the deepest existing ancestor of path and
// re-joins the components that do not exist yet.
func evalExisting(path string) (string, error) {
	cur, rest := path, ""
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(real, rest), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			// cur exists but its link target does not
			return "", fmt.Errorf("%w: dangling symlink %s", port.ErrPermission, filepath.Base(cur))
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

// Tree lists the project directory. Hidden entries and ignored directories are skipped;
// directories sort before files, then by name.
func (m *Manager) Tree() (*TreeNode, error) {
	root := m.Root()
	if root == "" {
		return nil, port.ErrNoProjectRoot
	}
	return m.buildTree(root, root)
}

func (m *Manager) buildTree(root, path string) (*TreeNode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	rel, _ := filepath.Rel(root, path)
	node := &TreeNode{Name: filepath.Base(path), Path: filepath.ToSlash(rel), Type: "file"}
	if !info.IsDir() {
		return node, nil
	}

	node.Type = "dir"
	node.Children = []*TreeNode{}
	entries, err := os.ReadDir(path)
	if err != nil {
		return node, nil
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || m.ignore[e.Name()] {
			continue
		}
		child, err := m.buildTree(root, filepath.Join(path, e.Name()))
		if err != nil {
			continue
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// Read returns a file's content with invalid UTF-8 replaced.
func (m *Manager) Read(rel string) (*FileContent, error) {
	path, err := m.safePath(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", port.ErrNotFound, rel)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", rel)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	content := strings.ToValidUTF8(string(data), "�")
	return &FileContent{
		Path:    rel,
		Content: content,
		Lines:   strings.Count(content, "\n") + 1,
		Size:    info.Size(),
	}, nil
}

// Write creates or overwrites a file, creating parent directories.
func (m *Manager) Write(rel, content string) (*WriteResult, error) {
	path, err := m.safeEntry(rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent: %w", err)
	}

	action := "created"
	if _, err := os.Stat(path); err == nil {
		action = "updated"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", rel, err)
	}
	return &WriteResult{
		Path:   rel,
		Action: action,
		Lines:  strings.Count(content, "\n") + 1,
		Size:   int64(len(content)),
	}, nil
}

// Delete removes a file. Directories are refused.
func (m *Manager) Delete(rel string) error {
	path, err := m.safeEntry(rel)
	if err != nil {
		return err
	}
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", port.ErrNotFound, rel)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", port.ErrPermission, rel)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", rel, err)
	}
	return nil
}

// Rename moves a file inside the project, creating the destination's parents.
func (m *Manager) Rename(oldRel, newRel string) error {
	src, err := m.safeEntry(oldRel)
	if err != nil {
		return err
	}
	dst, err := m.safeEntry(newRel)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", port.ErrNotFound, oldRel)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s: %w", oldRel, err)
	}
	return nil
}
