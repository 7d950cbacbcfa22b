package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"stablewatch/internal/domain/stream"
)

const networkConnectTimeout = 5 * time.Second

// Pipeline wraps ffmpeg invocations for live publishing and chunk extraction.
type Pipeline struct {
	SegmentSeconds int
	PlaylistWindow int
}

// NewPipeline creates the ffmpeg adapter with HLS output settings.
func NewPipeline(segmentSeconds, playlistWindow int) *Pipeline {
	return &Pipeline{SegmentSeconds: segmentSeconds, PlaylistWindow: playlistWindow}
}

// StartLive launches a long-running transcode that republishes the source as
// a rolling segmented playlist in outputDir. The returned process handle is
// owned by the caller.
func (p *Pipeline) StartLive(src stream.Source, outputDir, playlistPath string) (*Process, error) {
	args := inputArgs(src)
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-sc_threshold", "0",
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", p.SegmentSeconds),
		"-an",
		"-f", "hls",
		"-hls_time", strconv.Itoa(p.SegmentSeconds),
		"-hls_list_size", strconv.Itoa(p.PlaylistWindow),
		"-hls_flags", "delete_segments+independent_segments",
		"-hls_segment_filename", filepath.Join(outputDir, "segment%05d.ts"),
		playlistPath,
	)

	cmd := exec.Command("ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg spawn failed: %w", err)
	}

	proc := &Process{cmd: cmd, stderr: &stderr, done: make(chan struct{})}
	go proc.wait()
	return proc, nil
}

// Extract produces one [offset, offset+duration) chunk from the source into
// outPath. The context bounds the call; on cancellation the subprocess is
// killed by CommandContext.
func (p *Pipeline) Extract(ctx context.Context, src stream.Source, offsetSeconds, durationSeconds int, outPath string) error {
	var args []string
	if src.Kind == stream.SourceLoopFile {
		// Seeking works against the looped file, so the stream-relative
		// offset maps straight onto the source timeline.
		args = append(args, "-ss", strconv.Itoa(offsetSeconds))
	}
	args = append(args, inputArgs(src)...)
	args = append(args,
		"-t", strconv.Itoa(durationSeconds),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-an",
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y",
		outPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("extraction timed out: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String()))
	}
	return nil
}

func inputArgs(src stream.Source) []string {
	switch src.Kind {
	case stream.SourceLoopFile:
		return []string{"-stream_loop", "-1", "-re", "-i", src.Path}
	default:
		args := []string{}
		if strings.HasPrefix(src.URL, "rtsp") {
			args = append(args, "-rtsp_transport", string(src.Transport))
		}
		args = append(args,
			"-timeout", strconv.FormatInt(networkConnectTimeout.Microseconds(), 10),
			"-i", src.URL,
		)
		return args
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

// Process is a handle to one running ffmpeg subprocess. The exit is observed
// exactly once; Done never fires twice.
type Process struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer

	done chan struct{}
	once sync.Once
	err  error
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.once.Do(func() {
		if err != nil {
			p.err = fmt.Errorf("ffmpeg exited: %w: %s", err, tail(p.stderr.String()))
		}
		close(p.done)
	})
}

// Done is closed when the subprocess has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err reports the exit error. Only valid after Done is closed.
func (p *Process) Err() error {
	return p.err
}

// Alive reports whether the subprocess is still running.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Terminate sends a graceful termination signal.
func (p *Process) Terminate() error {
	if !p.Alive() {
		return nil
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

// Kill force-terminates the subprocess.
func (p *Process) Kill() error {
	if !p.Alive() {
		return nil
	}
	return p.cmd.Process.Kill()
}
