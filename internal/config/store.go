package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/sjson"

	"github.com/telnet2/quickcmd/internal/logging"
	"github.com/telnet2/quickcmd/pkg/types"
)

// SettingsKey is the settings entry holding a layer's root list.
const SettingsKey = "quickCommands.commands"

// settingsPath is SettingsKey escaped for gjson/sjson paths.
const settingsPath = `quickCommands\.commands`

// ErrNoFile is returned when writing a scope that has no backing file.
var ErrNoFile = errors.New("scope has no settings file")

// Store persists each layer's root list.
type Store interface {
	Read(ctx context.Context, scope types.Scope) ([]*types.Node, error)
	Write(ctx context.Context, scope types.Scope, nodes []*types.Node) error
	Path(scope types.Scope) string
}

const (
	writeRetries         = 3
	writeInitialInterval = 20 * time.Millisecond
	writeMaxInterval     = 200 * time.Millisecond
)

// FileStore keeps each layer under SettingsKey in a JSONC settings file.
// Other keys of the file are left untouched on write.
type FileStore struct {
	fs    afero.Fs
	paths SettingsPaths

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a store over fs. Pass afero.NewOsFs() for real files.
func NewFileStore(fs afero.Fs, paths SettingsPaths) *FileStore {
	return &FileStore{fs: fs, paths: paths, locks: make(map[string]*sync.Mutex)}
}

// Path returns the file backing scope, or "".
func (s *FileStore) Path(scope types.Scope) string {
	return s.paths.For(scope)
}

// Paths returns every configured settings file.
func (s *FileStore) Paths() SettingsPaths {
	return s.paths
}

func (s *FileStore) lock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// Read loads a layer. A missing file or key yields an empty layer.
func (s *FileStore) Read(ctx context.Context, scope types.Scope) ([]*types.Node, error) {
	path := s.Path(scope)
	if path == "" {
		return nil, nil
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s settings: %w", scope, err)
	}
	return decodeLayer(data, path)
}

func decodeLayer(data []byte, path string) ([]*types.Node, error) {
	data = jsonc.ToJSON(data)
	if len(data) == 0 || !gjson.ValidBytes(data) {
		if len(trimSpace(data)) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: invalid JSON", path)
	}

	res := gjson.GetBytes(data, settingsPath)
	if !res.Exists() || res.Type == gjson.Null {
		return nil, nil
	}
	if !res.IsArray() {
		return nil, fmt.Errorf("%s: %s must be an array", path, SettingsKey)
	}

	var nodes []*types.Node
	if err := json.Unmarshal([]byte(res.Raw), &nodes); err != nil {
		return nil, fmt.Errorf("%s: decode %s: %w", path, SettingsKey, err)
	}
	return nodes, nil
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\n' || b[0] == '\r' || b[0] == '\t') {
		b = b[1:]
	}
	return b
}

// Write replaces the layer's entry in its settings file. The file is
// written to a temp file and renamed into place; transient failures are
// retried with exponential backoff.
func (s *FileStore) Write(ctx context.Context, scope types.Scope, nodes []*types.Node) error {
	path := s.Path(scope)
	if path == "" {
		return fmt.Errorf("write %s settings: %w", scope, ErrNoFile)
	}
	if nodes == nil {
		nodes = []*types.Node{}
	}
	raw, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s settings: %w", scope, err)
	}

	l := s.lock(path)
	l.Lock()
	defer l.Unlock()

	if _, onDisk := s.fs.(*afero.OsFs); onDisk {
		if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("write %s settings: %w", scope, err)
		}
		fl := newFileLock(path)
		if err := fl.Lock(); err != nil {
			return fmt.Errorf("lock %s settings: %w", scope, err)
		}
		defer fl.Unlock()
	}

	op := func() error {
		return s.writeOnce(path, raw)
	}
	if err := backoff.Retry(op, newWriteBackoff(ctx)); err != nil {
		return fmt.Errorf("write %s settings: %w", scope, err)
	}
	logging.Debug().Str("scope", string(scope)).Str("path", path).Int("roots", len(nodes)).Msg("settings written")
	return nil
}

func (s *FileStore) writeOnce(path string, raw []byte) error {
	existing, err := afero.ReadFile(s.fs, path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	existing = jsonc.ToJSON(existing)
	if len(trimSpace(existing)) == 0 {
		existing = []byte("{}")
	}
	if !gjson.ValidBytes(existing) {
		// Refuse to clobber a file the user is in the middle of editing.
		return backoff.Permanent(fmt.Errorf("%s: existing file is not valid JSON", path))
	}

	out, err := sjson.SetRawBytes(existing, settingsPath, raw)
	if err != nil {
		return backoff.Permanent(err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, out, 0o644); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

func newWriteBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = writeInitialInterval
	b.MaxInterval = writeMaxInterval
	b.RandomizationFactor = 0.5
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, writeRetries), ctx)
}

// MemoryStore keeps layers in memory.
type MemoryStore struct {
	mu     sync.Mutex
	layers map[types.Scope][]*types.Node
	writes int
}

// NewMemoryStore creates a store pre-filled with layers.
func NewMemoryStore(layers map[types.Scope][]*types.Node) *MemoryStore {
	m := &MemoryStore{layers: make(map[types.Scope][]*types.Node)}
	for s, nodes := range layers {
		m.layers[s] = types.CloneNodes(nodes)
	}
	return m
}

func (m *MemoryStore) Read(_ context.Context, scope types.Scope) ([]*types.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.CloneNodes(m.layers[scope]), nil
}

func (m *MemoryStore) Write(_ context.Context, scope types.Scope, nodes []*types.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers[scope] = types.CloneNodes(nodes)
	m.writes++
	return nil
}

func (m *MemoryStore) Path(scope types.Scope) string {
	return "memory://" + string(scope)
}

// Writes counts successful writes.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
