package h264decoder

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

// stderrTail bounds how much ffmpeg diagnostic output is kept.
const stderrTail = 4096

// findFFmpeg searches for ffmpeg in PATH and common locations.
// If customFFmpegPath is set, it uses that path instead.
func findFFmpeg() (string, error) {
	if customFFmpegPath != "" {
		if _, err := os.Stat(customFFmpegPath); err == nil {
			return customFFmpegPath, nil
		}
		return "", fmt.Errorf("%w: custom path %s not found", ErrFFmpegNotFound, customFFmpegPath)
	}

	if envPath := os.Getenv("FFMPEG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", fmt.Errorf("%w: FFMPEG_PATH %s not found", ErrFFmpegNotFound, envPath)
	}

	execName := "ffmpeg"
	if runtime.GOOS == "windows" {
		execName = "ffmpeg.exe"
	}
	if path, err := exec.LookPath(execName); err == nil {
		return path, nil
	}

	var commonPaths []string
	switch runtime.GOOS {
	case "windows":
		commonPaths = []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
		}
	case "darwin":
		commonPaths = []string{
			"/opt/homebrew/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
		}
	default:
		commonPaths = []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/snap/bin/ffmpeg",
		}
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrFFmpegNotFound
}

// process is one running ffmpeg instance. A reader goroutine moves
// pictures from stdout into an unbounded queue so writes to stdin never
// deadlock against unread output.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailWriter

	mu     sync.Mutex
	frames [][]byte
	done   bool
	ready  chan struct{}
	exited chan struct{}

	closeOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
}

func startProcess(ffmpegPath string, width, height, frameSize int) (*process, error) {
	cmd := exec.Command(ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-probesize", "32",
		"-analyzeduration", "0",
		"-f", "h264",
		"-i", "pipe:0",
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-s", strconv.Itoa(width)+"x"+strconv.Itoa(height),
		"pipe:1",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	p := &process{
		cmd:    cmd,
		stdin:  stdin,
		stderr: &tailWriter{max: stderrTail},
		ready:  make(chan struct{}, 1),
		exited: make(chan struct{}),
	}
	cmd.Stderr = p.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	go p.readLoop(stdout, frameSize)
	return p, nil
}

func (p *process) readLoop(stdout io.Reader, frameSize int) {
	defer close(p.exited)
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(stdout, buf); err != nil {
			p.mu.Lock()
			p.done = true
			p.mu.Unlock()
			p.signal()
			return
		}
		p.mu.Lock()
		p.frames = append(p.frames, buf)
		p.mu.Unlock()
		p.signal()
	}
}

func (p *process) signal() {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}

// write sends one access unit to ffmpeg.
func (p *process) write(data []byte) error {
	if _, err := p.stdin.Write(data); err != nil {
		return fmt.Errorf("write: %w%s", err, p.stderr.suffix())
	}
	return nil
}

func (p *process) closeInput() {
	p.closeOnce.Do(func() { _ = p.stdin.Close() })
}

// next pops the oldest picture. With block set it waits until a picture
// arrives or the output ends. ok is false once the output has ended and
// every picture was consumed.
func (p *process) next(block bool) (buf []byte, ok bool) {
	for {
		p.mu.Lock()
		if len(p.frames) > 0 {
			buf = p.frames[0]
			p.frames = p.frames[1:]
			p.mu.Unlock()
			return buf, true
		}
		done := p.done
		p.mu.Unlock()
		if done {
			return nil, false
		}
		if !block {
			return nil, true
		}
		<-p.ready
	}
}

// wait reaps the process after its output has ended.
func (p *process) wait() error {
	p.closeInput()
	p.waitOnce.Do(func() {
		<-p.exited
		if err := p.cmd.Wait(); err != nil {
			p.waitErr = fmt.Errorf("%w%s", err, p.stderr.suffix())
		}
	})
	return p.waitErr
}

func (p *process) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.wait()
}

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if len(w.buf) > w.max {
		w.buf = w.buf[len(w.buf)-w.max:]
	}
	return len(p), nil
}

// suffix formats the captured output for an error message.
func (w *tailWriter) suffix() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) == 0 {
		return ""
	}
	return "\nstderr: " + string(w.buf)
}
