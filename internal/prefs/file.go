package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const prefsFileName = "prefs.json"

type document map[string]map[string]string

// FileRoot stores every node in one JSON document of the form
// {"node": {"key": "value"}}.
//
// Nothing is held in memory between calls. Every read loads the file and
// every write reloads it, modifies it and renames a new copy over it.
// mu serialises callers within this process only; two processes writing
// at the same instant can still lose one update.
type FileRoot struct {
	path string
	mu   sync.Mutex
}

// OpenFile opens the preferences file in dataDir. A missing file is an
// empty store; an unparseable one is an error.
func OpenFile(dataDir string) (*FileRoot, error) {
	r := &FileRoot{path: filepath.Join(dataDir, prefsFileName)}
	if _, err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the location of the backing JSON file.
func (r *FileRoot) Path() string {
	return r.path
}

func (r *FileRoot) Node(name string) Backend {
	return &fileNode{root: r, name: name}
}

func (r *FileRoot) Close() error {
	return nil
}

// load must be called with mu held.
func (r *FileRoot) load() (document, error) {
	doc := make(document)
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading preferences file %s: %w", r.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing preferences file %s: %w", r.path, err)
	}
	return doc, nil
}

// save writes doc to a temp file and renames it over the preferences file.
// It must be called with mu held.
func (r *FileRoot) save(doc document) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating preferences dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, prefsFileName+".*")
	if err != nil {
		return fmt.Errorf("creating temp preferences file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing preferences file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing preferences file: %w", err)
	}
	// CreateTemp already uses 0600.
	return os.Rename(tmp.Name(), r.path)
}

// update applies fn to a freshly loaded document and saves the result when
// fn reports a change.
func (r *FileRoot) update(fn func(doc document) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return err
	}
	if !fn(doc) {
		return nil
	}
	return r.save(doc)
}

func (r *FileRoot) node(name string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return doc[name], nil
}

type fileNode struct {
	root *FileRoot
	name string
}

func (n *fileNode) GetString(key string) (string, bool, error) {
	node, err := n.root.node(n.name)
	if err != nil {
		return "", false, err
	}
	v, ok := node[key]
	return v, ok, nil
}

func (n *fileNode) SetString(key, val string) error {
	return n.root.update(func(doc document) bool {
		if doc[n.name] == nil {
			doc[n.name] = make(map[string]string)
		}
		doc[n.name][key] = val
		return true
	})
}

func (n *fileNode) Delete(key string) error {
	return n.root.update(func(doc document) bool {
		node := doc[n.name]
		if _, ok := node[key]; !ok {
			return false
		}
		delete(node, key)
		if len(node) == 0 {
			delete(doc, n.name)
		}
		return true
	})
}

func (n *fileNode) Keys() ([]string, error) {
	node, err := n.root.node(n.name)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
