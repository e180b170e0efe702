package streamer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPassthroughLifecycle(t *testing.T) {
	p := NewPassthroughStreamer("http://radio.example.com/stream")

	if p.IsRunning() {
		t.Error("must not run before Start")
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !p.IsRunning() {
		t.Error("must run after Start")
	}
	if got := p.StreamURL("10.0.0.5"); got != "http://radio.example.com/stream" {
		t.Errorf("StreamURL = %q, must echo the source unchanged", got)
	}
	p.Stop()
	if p.IsRunning() {
		t.Error("must not run after Stop")
	}
}

func TestAudioStreamURL(t *testing.T) {
	a := NewAudioStreamer(Options{Port: 8080, DataDir: t.TempDir()})
	if got := a.StreamURL("192.168.1.10"); got != "http://192.168.1.10:8080/stream.mp3" {
		t.Errorf("StreamURL = %q", got)
	}
}

func TestAudioStopWithoutStartIsNoop(t *testing.T) {
	a := NewAudioStreamer(Options{Port: 8080, DataDir: t.TempDir()})
	a.Stop()
	a.Stop()
	if a.IsRunning() {
		t.Error("IsRunning must stay false")
	}
}

func TestCleanupOrphanRemovesStalePIDFile(t *testing.T) {
	dir := t.TempDir()
	a := NewAudioStreamer(Options{Port: 8080, DataDir: dir})

	pidPath := filepath.Join(dir, pidFileName)
	// PID far above any live process on a test machine.
	if err := os.WriteFile(pidPath, []byte("4194000"), 0o644); err != nil {
		t.Fatal(err)
	}

	a.cleanupOrphan()
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("stale PID file must be removed")
	}
}

func TestCleanupOrphanRemovesGarbagePIDFile(t *testing.T) {
	dir := t.TempDir()
	a := NewAudioStreamer(Options{Port: 8080, DataDir: dir})

	pidPath := filepath.Join(dir, pidFileName)
	if err := os.WriteFile(pidPath, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}

	a.cleanupOrphan()
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("unparseable PID file must be removed")
	}
}

func TestFFmpegArgs(t *testing.T) {
	a := NewAudioStreamer(Options{
		SourceURL:         "http://radio.example.com/stream",
		Bitrate:           "128k",
		ProtocolWhitelist: "http,https,tcp,tls",
		DataDir:           t.TempDir(),
	})

	args := a.ffmpegArgs()
	want := []string{
		"-protocol_whitelist", "http,https,tcp,tls",
		"-i", "http://radio.example.com/stream",
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", "128k",
		"-ar", "44100",
		"-ac", "2",
		"-f", "mp3",
		"-",
	}
	if len(args) != len(want) {
		t.Fatalf("args = %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}
