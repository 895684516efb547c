package pdftoppm

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"
)

type fakeRunner struct {
	calls [][]string
	fail  error
}

// Run mimics pdftoppm -singlefile: it writes <prefix>.png, the last arg.
func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.fail != nil {
		return []byte("Syntax Error"), f.fail
	}
	out, err := os.Create(args[len(args)-1] + ".png")
	if err != nil {
		return nil, err
	}
	defer out.Close()
	return nil, png.Encode(out, image.NewGray(image.Rect(0, 0, 30, 40)))
}

func TestSessionRendersSinglePage(t *testing.T) {
	runner := &fakeRunner{}
	r := New("", 144, WithRunner(runner))

	session, err := r.Open(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer session.Close()

	if session.Scale() != 2 {
		t.Fatalf("expected scale 2 at 144 dpi, got %v", session.Scale())
	}
	img, err := session.Page(context.Background(), 3)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 40 {
		t.Fatalf("unexpected image bounds: %v", img.Bounds())
	}

	got := strings.Join(runner.calls[0][:9], " ")
	if got != "pdftoppm -f 3 -l 3 -singlefile -png -r 144" {
		t.Fatalf("unexpected command: %s", got)
	}
}

func TestSessionPageErrorIncludesStderr(t *testing.T) {
	r := New("pdftoppm", 0, WithRunner(&fakeRunner{fail: errors.New("exit status 1")}))
	session, err := r.Open(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer session.Close()

	_, err = session.Page(context.Background(), 1)
	if err == nil || !strings.Contains(err.Error(), "Syntax Error") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if _, err := session.Page(context.Background(), 0); err == nil {
		t.Fatalf("expected error for page 0")
	}
}

func TestSessionCloseRemovesWorkDir(t *testing.T) {
	r := New("", 72, WithRunner(&fakeRunner{}))
	rs, err := r.Open(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	dir := rs.(*session).dir
	if err := rs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected work dir removed, stat err=%v", err)
	}
}
