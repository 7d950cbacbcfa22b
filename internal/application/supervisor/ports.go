package supervisor

import (
	"time"

	"stablewatch/internal/domain/stream"
)

// Process is a handle to one live transcoding subprocess.
type Process interface {
	// Done is closed exactly once, when the subprocess has exited.
	Done() <-chan struct{}
	// Err reports the exit error; only valid after Done is closed.
	Err() error
	Alive() bool
	Terminate() error
	Kill() error
}

// Launcher is an application port for starting live transcoding subprocesses.
type Launcher interface {
	StartLive(src stream.Source, outputDir, playlistPath string) (Process, error)
}

// OutputStore is an application port for stream-private output directories
// and playlist freshness probing.
type OutputStore interface {
	StreamPaths(streamID string) (outputDir, playlistPath, playlistURL string)
	PrepareStreamDir(streamID string) (string, error)
	ReleaseStreamDir(streamID string) error
	PlaylistInfo(streamID string) (segments int, lastWrite time.Time, err error)
}

// DescriptorSource reads configured stream descriptors from the external
// configuration layer.
type DescriptorSource interface {
	List() ([]stream.Descriptor, error)
	Get(id string) (stream.Descriptor, error)
}

// ChunkSchedules is the monitor's port to the per-stream extraction
// scheduler, so streams it brings up also get their recurring extraction.
type ChunkSchedules interface {
	Attach(desc stream.Descriptor) error
	Attached(streamID string) bool
}
