// Package streamer provides the playback sources a renderer pulls from:
// either the original stream URL handed through untouched, or a local ffmpeg
// transcode relay serving MP3 over HTTP.
package streamer

// Streamer is one playback source. Start is not required to block until the
// source is reachable; AudioStreamer exposes WaitUntilReady for that.
type Streamer interface {
	Start() error
	Stop()
	IsRunning() bool
	StreamURL(host string) string
}

// PassthroughStreamer represents playback directly from the source URL. It
// spawns nothing; it only tracks session state so /status can report it.
type PassthroughStreamer struct {
	sourceURL string
	running   bool
}

func NewPassthroughStreamer(sourceURL string) *PassthroughStreamer {
	return &PassthroughStreamer{sourceURL: sourceURL}
}

func (p *PassthroughStreamer) Start() error {
	p.running = true
	return nil
}

func (p *PassthroughStreamer) Stop() {
	p.running = false
}

func (p *PassthroughStreamer) IsRunning() bool {
	return p.running
}

// StreamURL ignores host: the device fetches the source directly.
func (p *PassthroughStreamer) StreamURL(string) string {
	return p.sourceURL
}
