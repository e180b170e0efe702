package streamer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aosaki/dlnacast/tool"
)

const (
	pidFileName = "ffmpeg.pid"

	// Last lines of ffmpeg stderr kept for the crash report.
	stderrRingSize = 20

	orphanGracePeriod = 1 * time.Second
	stopGracePeriod   = 5 * time.Second
	readyPollInterval = 200 * time.Millisecond
)

// Options configure one AudioStreamer instance. All fields are required.
type Options struct {
	SourceURL         string
	Port              int
	Bitrate           string // e.g. "128k"
	ChunkSize         int
	MaxStderrLines    int
	ProtocolWhitelist string
	DataDir           string
	// OnCrash receives the stderr tail when the process dies without Stop
	// being called. May be nil.
	OnCrash func(stderrTail []string)
}

// AudioStreamer transcodes a source URL to MP3 with ffmpeg and serves the
// result on a single local HTTP route. One ffmpeg process feeds one relay
// server; the renderer is expected to be the only consumer.
type AudioStreamer struct {
	opts    Options
	pidPath string

	mu       sync.Mutex
	running  bool
	cmd      *exec.Cmd
	stdout   *bufio.Reader
	server   *http.Server
	done     chan struct{} // closed when the ffmpeg process exits
	stderrMu sync.Mutex
	stderr   []string // ring of the last stderrRingSize lines

	// Guards the single stdout consumer: a second concurrent client would
	// interleave reads and corrupt both streams.
	relayMu sync.Mutex
}

func NewAudioStreamer(opts Options) *AudioStreamer {
	return &AudioStreamer{
		opts:    opts,
		pidPath: filepath.Join(opts.DataDir, pidFileName),
	}
}

// cleanupOrphan kills a leftover ffmpeg process recorded in the PID file by a
// previous run that died without cleaning up. Runs before every bind so a
// stale process cannot hold the port.
func (a *AudioStreamer) cleanupOrphan() {
	data, err := os.ReadFile(a.pidPath)
	if err != nil {
		return
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		_ = os.Remove(a.pidPath)
		return
	}
	proc, err := os.FindProcess(pid)
	if err == nil && proc.Signal(syscall.Signal(0)) == nil {
		tool.DefaultLogger.Warnf("Killing orphaned ffmpeg process %d from previous run", pid)
		_ = proc.Signal(syscall.SIGTERM)
		time.Sleep(orphanGracePeriod)
		if proc.Signal(syscall.Signal(0)) == nil {
			_ = proc.Kill()
		}
	}
	_ = os.Remove(a.pidPath)
}

func (a *AudioStreamer) ffmpegArgs() []string {
	return []string{
		"-protocol_whitelist", a.opts.ProtocolWhitelist,
		"-i", a.opts.SourceURL,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", a.opts.Bitrate,
		"-ar", "44100",
		"-ac", "2",
		"-f", "mp3",
		"-",
	}
}

// Start performs orphan cleanup, binds the relay port, spawns ffmpeg and
// begins serving /stream.mp3. It does not wait for the pipeline to produce
// audio; call WaitUntilReady for that.
func (a *AudioStreamer) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return errors.New("streamer already running")
	}

	a.cleanupOrphan()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.opts.Port))
	if err != nil {
		return fmt.Errorf("failed to bind streaming port %d: %w", a.opts.Port, err)
	}

	cmd := exec.Command("ffmpeg", a.ffmpegArgs()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		listener.Close()
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		listener.Close()
		return err
	}
	if err := cmd.Start(); err != nil {
		listener.Close()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	tool.DefaultLogger.Infof("Started ffmpeg (pid %d) transcoding %s at %s", cmd.Process.Pid, a.opts.SourceURL, a.opts.Bitrate)

	if err := os.WriteFile(a.pidPath, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644); err != nil {
		tool.DefaultLogger.Warnf("Failed to write PID file: %v", err)
	}

	a.cmd = cmd
	a.stdout = bufio.NewReaderSize(stdout, a.opts.ChunkSize)
	a.stderr = nil
	a.done = make(chan struct{})
	done := a.done
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	go a.drainStderr(stderr)

	mux := http.NewServeMux()
	mux.HandleFunc("/stream.mp3", a.serveStream)
	a.server = &http.Server{Handler: mux}
	server := a.server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			tool.DefaultLogger.Errorf("Stream relay server error: %v", err)
		}
	}()

	a.running = true
	return nil
}

// drainStderr keeps ffmpeg's stderr pipe from filling up and blocking the
// process. Lines are logged up to a cap and the tail is retained for crash
// reports.
func (a *AudioStreamer) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	logged := 0
	for scanner.Scan() {
		line := scanner.Text()
		if logged < a.opts.MaxStderrLines {
			tool.DefaultLogger.Debugf("ffmpeg: %s", line)
			logged++
		}
		a.stderrMu.Lock()
		a.stderr = append(a.stderr, line)
		if len(a.stderr) > stderrRingSize {
			a.stderr = a.stderr[len(a.stderr)-stderrRingSize:]
		}
		a.stderrMu.Unlock()
	}
}

// StderrTail returns the last lines ffmpeg wrote, newest last.
func (a *AudioStreamer) StderrTail() []string {
	a.stderrMu.Lock()
	defer a.stderrMu.Unlock()
	return append([]string(nil), a.stderr...)
}

// serveStream relays ffmpeg stdout to one HTTP client in fixed-size chunks.
// A client disconnect ends only this response; ffmpeg keeps running for the
// next connection.
func (a *AudioStreamer) serveStream(w http.ResponseWriter, r *http.Request) {
	if !a.relayMu.TryLock() {
		http.Error(w, "stream busy", http.StatusServiceUnavailable)
		return
	}
	defer a.relayMu.Unlock()

	a.mu.Lock()
	stdout := a.stdout
	a.mu.Unlock()
	if stdout == nil {
		http.Error(w, "stream not running", http.StatusServiceUnavailable)
		return
	}

	tool.DefaultLogger.Infof("Stream client connected: %s", r.RemoteAddr)
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, a.opts.ChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				tool.DefaultLogger.Infof("Stream client disconnected: %s", r.RemoteAddr)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			tool.DefaultLogger.Debugf("ffmpeg stdout closed: %v", err)
			return
		}
	}
}

// alive reports whether the ffmpeg process is still running. Pure check, no
// side effects. Callers hold a.mu.
func (a *AudioStreamer) alive() bool {
	if a.done == nil {
		return false
	}
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

// IsRunning is the session liveness oracle. Beyond reporting state, it is the
// crash detection point: when ffmpeg died without Stop being called it tears
// the session down, dumps the stderr tail and fires the crash callback before
// returning false.
func (a *AudioStreamer) IsRunning() bool {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return false
	}
	if a.alive() {
		a.mu.Unlock()
		return true
	}
	a.mu.Unlock()

	tail := a.StderrTail()
	tool.DefaultLogger.Error("ffmpeg process died unexpectedly")
	for _, line := range tail {
		tool.DefaultLogger.Errorf("ffmpeg: %s", line)
	}
	a.Stop()
	if a.opts.OnCrash != nil {
		a.opts.OnCrash(tail)
	}
	return false
}

// WaitUntilReady polls the relay port until it accepts a TCP connection or
// the timeout expires. Returns false early if ffmpeg already died.
func (a *AudioStreamer) WaitUntilReady(timeout time.Duration) bool {
	addr := fmt.Sprintf("127.0.0.1:%d", a.opts.Port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		alive := a.alive()
		a.mu.Unlock()
		if !alive {
			return false
		}
		conn, err := net.DialTimeout("tcp", addr, readyPollInterval)
		if err == nil {
			conn.Close()
			return true
		}
		time.Sleep(readyPollInterval)
	}
	return false
}

// Stop shuts the relay server, terminates ffmpeg (SIGTERM, then SIGKILL after
// a grace period) and removes the PID file. Safe to call repeatedly.
func (a *AudioStreamer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	a.running = false

	if a.server != nil {
		// Close rather than Shutdown: the port must be free for the next
		// session immediately, open relay responses just end.
		_ = a.server.Close()
		a.server = nil
	}

	if a.cmd != nil && a.cmd.Process != nil {
		_ = a.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-a.done:
		case <-time.After(stopGracePeriod):
			tool.DefaultLogger.Warn("ffmpeg did not exit after SIGTERM, killing")
			_ = a.cmd.Process.Kill()
			<-a.done
		}
		tool.DefaultLogger.Info("Stopped ffmpeg process")
	}
	a.cmd = nil
	a.stdout = nil
	_ = os.Remove(a.pidPath)
}

// StreamURL builds the URL a renderer uses to pull the transcoded stream.
func (a *AudioStreamer) StreamURL(host string) string {
	return fmt.Sprintf("http://%s:%d/stream.mp3", host, a.opts.Port)
}
