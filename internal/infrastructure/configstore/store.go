package configstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"stablewatch/internal/domain/stream"
)

var ErrNotFound = errors.New("stream not configured")

type storedStream struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"` // "loop-file" | "network"
	Path      string `json:"path,omitempty"`
	URL       string `json:"url,omitempty"`
	Transport string `json:"transport,omitempty"`
	Desired   bool   `json:"desired"`
}

// Store is a file-backed stream descriptor source: the boundary to the
// external configuration layer.
type Store struct {
	path string

	mu      sync.RWMutex
	streams []stream.Descriptor
}

// Load reads the streams file and validates every descriptor. A missing file
// yields an empty store.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the streams file, replacing the in-memory view.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.streams = nil
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}

	var stored []storedStream
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("streams file %s: %w", s.path, err)
	}

	descs := make([]stream.Descriptor, 0, len(stored))
	for _, raw := range stored {
		desc, err := toDescriptor(raw)
		if err != nil {
			return fmt.Errorf("stream %q: %w", raw.ID, err)
		}
		descs = append(descs, desc)
	}

	s.mu.Lock()
	s.streams = descs
	s.mu.Unlock()
	return nil
}

func toDescriptor(raw storedStream) (stream.Descriptor, error) {
	var src stream.Source
	var err error
	switch stream.SourceKind(raw.Kind) {
	case stream.SourceLoopFile:
		src, err = stream.NewLoopFileSource(raw.Path)
	case stream.SourceNetwork:
		src, err = stream.NewNetworkSource(raw.URL, stream.Transport(raw.Transport))
	default:
		return stream.Descriptor{}, fmt.Errorf("unknown source kind %q", raw.Kind)
	}
	if err != nil {
		return stream.Descriptor{}, err
	}
	return stream.NewDescriptor(raw.ID, raw.Name, src, raw.Desired)
}

// List returns all configured stream descriptors.
func (s *Store) List() ([]stream.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]stream.Descriptor, len(s.streams))
	copy(out, s.streams)
	return out, nil
}

// Get returns one configured stream by id.
func (s *Store) Get(id string) (stream.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, desc := range s.streams {
		if desc.ID == id {
			return desc, nil
		}
	}
	return stream.Descriptor{}, ErrNotFound
}
