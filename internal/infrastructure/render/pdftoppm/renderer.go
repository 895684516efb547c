// Package pdftoppm rasterizes PDF pages with the poppler pdftoppm binary.
package pdftoppm

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/appraisal-intelligence/internal/core/ports"
)

const (
	DefaultBinary = "pdftoppm"
	DefaultDPI    = 150

	pointsPerInch = 72.0
)

// Runner executes an external command. Tests replace it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var errb bytes.Buffer
	cmd.Stderr = &errb
	err := cmd.Run()
	slog.Debug("pdftoppm_exec",
		"args", strings.Join(args, " "),
		"duration_ms", time.Since(start).Milliseconds(),
		"ok", err == nil,
	)
	return errb.Bytes(), err
}

type Renderer struct {
	binary string
	dpi    int
	runner Runner
}

type Option func(*Renderer)

func WithRunner(r Runner) Option {
	return func(rd *Renderer) {
		if r != nil {
			rd.runner = r
		}
	}
}

func New(binary string, dpi int, opts ...Option) *Renderer {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	r := &Renderer{binary: binary, dpi: dpi, runner: execRunner{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether the binary can be found.
func (r *Renderer) Available() error {
	if _, err := exec.LookPath(r.binary); err != nil {
		return fmt.Errorf("%s not found: %w", r.binary, err)
	}
	return nil
}

// Open writes the document to a private temp directory that lives until
// the session is closed.
func (r *Renderer) Open(_ context.Context, pdf []byte) (ports.RenderSession, error) {
	dir, err := os.MkdirTemp("", "appraisal-render-*")
	if err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	path := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(path, pdf, 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("write render input: %w", err)
	}
	return &session{renderer: r, dir: dir, input: path}, nil
}

type session struct {
	renderer *Renderer
	dir      string
	input    string
}

func (s *session) Scale() float64 {
	return float64(s.renderer.dpi) / pointsPerInch
}

// Page renders one page. Concurrent calls for different pages are safe;
// each writes its own output file.
func (s *session) Page(ctx context.Context, page int) (image.Image, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	n := strconv.Itoa(page)
	prefix := filepath.Join(s.dir, "page-"+n)
	args := []string{
		"-f", n, "-l", n,
		"-singlefile", "-png",
		"-r", strconv.Itoa(s.renderer.dpi),
		s.input, prefix,
	}
	stderr, err := s.renderer.runner.Run(ctx, s.renderer.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w: %s", page, err, truncate(string(stderr), 512))
	}

	out := prefix + ".png"
	defer os.Remove(out)
	f, err := os.Open(out)
	if err != nil {
		return nil, fmt.Errorf("open rendered page %d: %w", page, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode rendered page %d: %w", page, err)
	}
	return img, nil
}

func (s *session) Close() error {
	return os.RemoveAll(s.dir)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}
