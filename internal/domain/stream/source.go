package stream

import (
	"errors"
	"net/url"
	"strings"
)

// SourceKind selects how a stream origin is read.
type SourceKind string

const (
	// SourceLoopFile replays a local file in an endless loop.
	SourceLoopFile SourceKind = "loop-file"
	// SourceNetwork pulls a live feed from a network endpoint.
	SourceNetwork SourceKind = "network"
)

// Transport is the sub-kind of a pulled network feed.
type Transport string

const (
	TransportTCP Transport = "tcp"
	TransportUDP Transport = "udp"
)

var (
	ErrEmptyLocator     = errors.New("source locator is empty")
	ErrInvalidTransport = errors.New("invalid network transport")
	ErrInvalidLocator   = errors.New("invalid source locator")
)

// Source is a tagged union over the supported origin kinds. Kind-specific
// fields are validated at construction, not at use.
type Source struct {
	Kind      SourceKind
	Path      string    // loop-file only
	URL       string    // network only
	Transport Transport // network only
}

// NewLoopFileSource builds a looped-local-file source.
func NewLoopFileSource(path string) (Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Source{}, ErrEmptyLocator
	}
	return Source{Kind: SourceLoopFile, Path: path}, nil
}

// NewNetworkSource builds a pulled-network-feed source with a transport sub-kind.
func NewNetworkSource(rawURL string, transport Transport) (Source, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Source{}, ErrEmptyLocator
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Source{}, ErrInvalidLocator
	}
	switch transport {
	case TransportTCP, TransportUDP:
	case "":
		transport = TransportTCP
	default:
		return Source{}, ErrInvalidTransport
	}
	return Source{Kind: SourceNetwork, URL: rawURL, Transport: transport}, nil
}

// Locator returns the raw origin the transcoder reads.
func (s Source) Locator() string {
	if s.Kind == SourceLoopFile {
		return s.Path
	}
	return s.URL
}

// Redacted returns the locator with credentials stripped, safe for logs.
func (s Source) Redacted() string {
	if s.Kind == SourceLoopFile {
		return s.Path
	}
	parsed, err := url.Parse(s.URL)
	if err != nil {
		return "<invalid url>"
	}
	if parsed.User != nil {
		parsed.User = url.User("****")
	}
	return parsed.String()
}
