package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stablewatch/internal/domain/chunk"
)

var ErrChunkNotFound = errors.New("chunk file not found")

// Store manages per-stream live output directories and extracted chunk files.
type Store struct {
	LiveDir  string
	ChunkDir string
}

// NewStore creates filesystem adapter with configured roots.
func NewStore(liveDir, chunkDir string) *Store {
	return &Store{LiveDir: liveDir, ChunkDir: chunkDir}
}

// EnsureDirs creates filesystem roots used by the services.
func (s *Store) EnsureDirs() error {
	if err := os.MkdirAll(s.LiveDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(s.ChunkDir, 0o755)
}

// StreamPaths builds the private output directory, playlist path and playlist
// URL for a stream.
func (s *Store) StreamPaths(streamID string) (outputDir, playlistPath, playlistURL string) {
	outputDir = filepath.Join(s.LiveDir, streamID)
	playlistPath = filepath.Join(outputDir, "index.m3u8")
	playlistURL = "/live/" + streamID + "/index.m3u8"
	return outputDir, playlistPath, playlistURL
}

// PrepareStreamDir allocates a fresh private output directory for a stream.
func (s *Store) PrepareStreamDir(streamID string) (string, error) {
	outputDir, _, _ := s.StreamPaths(streamID)
	_ = os.RemoveAll(outputDir)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	return outputDir, nil
}

// ReleaseStreamDir removes a stream's output directory and all segments in it.
func (s *Store) ReleaseStreamDir(streamID string) error {
	outputDir, _, _ := s.StreamPaths(streamID)
	return os.RemoveAll(outputDir)
}

// PlaylistInfo reports segment count and the age of the most recent segment
// write for a stream's live output.
func (s *Store) PlaylistInfo(streamID string) (segments int, lastWrite time.Time, err error) {
	outputDir, playlistPath, _ := s.StreamPaths(streamID)

	info, err := os.Stat(playlistPath)
	if err != nil {
		return 0, time.Time{}, err
	}
	lastWrite = info.ModTime()

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return 0, time.Time{}, err
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".ts") {
			continue
		}
		segments++
		if fi, err := entry.Info(); err == nil && fi.ModTime().After(lastWrite) {
			lastWrite = fi.ModTime()
		}
	}
	return segments, lastWrite, nil
}

// ChunkPath builds the output file path for a chunk of a stream.
func (s *Store) ChunkPath(streamID, chunkID string) string {
	return filepath.Join(s.ChunkDir, chunk.FileName(streamID, chunkID))
}

// FindChunk locates a chunk file by id with a linear scan over the chunk
// directory's predictable filename pattern.
func (s *Store) FindChunk(chunkID string) (string, error) {
	entries, err := os.ReadDir(s.ChunkDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		_, id, err := chunk.ParseFileName(entry.Name())
		if err != nil {
			continue
		}
		if id == chunkID {
			return filepath.Join(s.ChunkDir, entry.Name()), nil
		}
	}
	return "", ErrChunkNotFound
}

// SweepChunks deletes chunk files older than cutoff, returning how many were
// removed. Files that do not match the chunk naming pattern are left alone.
func (s *Store) SweepChunks(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.ChunkDir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, _, err := chunk.ParseFileName(entry.Name()); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.ChunkDir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
