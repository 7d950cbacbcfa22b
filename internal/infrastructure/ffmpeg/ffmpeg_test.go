package ffmpeg

import (
	"strings"
	"testing"

	"stablewatch/internal/domain/stream"
)

func TestInputArgs_LoopFile(t *testing.T) {
	src, err := stream.NewLoopFileSource("./media/lobby.mp4")
	if err != nil {
		t.Fatalf("source: %v", err)
	}

	args := strings.Join(inputArgs(src), " ")
	if args != "-stream_loop -1 -re -i ./media/lobby.mp4" {
		t.Fatalf("unexpected args: %q", args)
	}
}

func TestInputArgs_RTSPCarriesTransport(t *testing.T) {
	src, err := stream.NewNetworkSource("rtsp://cam.local/stream", stream.TransportUDP)
	if err != nil {
		t.Fatalf("source: %v", err)
	}

	args := strings.Join(inputArgs(src), " ")
	if !strings.Contains(args, "-rtsp_transport udp") {
		t.Fatalf("expected rtsp transport flag, got %q", args)
	}
	if !strings.HasSuffix(args, "-i rtsp://cam.local/stream") {
		t.Fatalf("expected input url last, got %q", args)
	}
}

func TestInputArgs_NonRTSPSkipsTransport(t *testing.T) {
	src, err := stream.NewNetworkSource("http://cam.local/feed.m3u8", stream.TransportTCP)
	if err != nil {
		t.Fatalf("source: %v", err)
	}

	args := strings.Join(inputArgs(src), " ")
	if strings.Contains(args, "-rtsp_transport") {
		t.Fatalf("http source must not carry rtsp flags: %q", args)
	}
}

func TestTail_BoundsStderr(t *testing.T) {
	long := strings.Repeat("x", 2000)
	if got := tail(long); len(got) != 512 {
		t.Fatalf("expected 512-byte tail, got %d", len(got))
	}
	if got := tail("  short  "); got != "short" {
		t.Fatalf("expected trimmed output, got %q", got)
	}
}
