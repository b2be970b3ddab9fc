package camera

import (
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch/facetest"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"a.jpg": true, "b.JPEG": true, "c.png": true, "d.webp": true, "e.bmp": true,
		"notes.txt": false, "noext": false,
	}
	for name, want := range tests {
		if got := IsImageFile(name); got != want {
			t.Errorf("IsImageFile(%q) = %v; want %v", name, got, want)
		}
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "002.png"), 20, 10)
	writePNG(t, filepath.Join(dir, "001.png"), 10, 10)
	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644)
	os.Mkdir(filepath.Join(dir, "sub.png"), 0o755)

	src, err := NewDirSource(dir)
	if err != nil {
		t.Fatalf("NewDirSource failed: %v", err)
	}
	if src.Len() != 2 {
		t.Fatalf("expected 2 frames, got %d", src.Len())
	}
	if paths := src.Paths(); filepath.Base(paths[0]) != "001.png" || filepath.Base(paths[1]) != "002.png" {
		t.Errorf("unexpected order %v", paths)
	}

	ctx := context.Background()
	first, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if filepath.Base(first.Source) != "001.png" || first.Image.Bounds().Dx() != 10 {
		t.Errorf("expected 001.png first, got %s", first.Source)
	}
	if first.CapturedAt.IsZero() {
		t.Error("expected capture time from file")
	}

	second, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected distinct frame IDs")
	}

	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFileSource_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.jpg")
	os.WriteFile(bad, []byte("not a jpeg"), 0o644)
	good := filepath.Join(dir, "good.png")
	writePNG(t, good, 4, 4)

	src := NewFileSource(bad, good)
	if _, err := src.Next(context.Background()); err == nil {
		t.Error("expected decode error for corrupt file")
	}
	if _, err := src.Next(context.Background()); err != nil {
		t.Errorf("expected next file to decode, got %v", err)
	}
}

func TestHTTPSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.png")
	writePNG(t, path, 32, 24)
	data, _ := os.ReadFile(path)

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL, 0)
	frame, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if b := frame.Image.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("unexpected frame size %v", b)
	}

	if _, err := src.Next(context.Background()); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestHTTPSource_WaitsForInterval(t *testing.T) {
	src := NewHTTPSource("http://127.0.0.1:0/unused", time.Hour)
	src.last = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected to wait for interval until deadline, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	if _, err := Decode([]byte("garbage")); err == nil {
		t.Error("expected error for garbage")
	}
}

func TestDecode_RejectsOversizedDimensions(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
	}{
		{"square", 60000, 60000},
		{"wide strip", 1 << 20, 64},
		{"one over limit", constants.MaxFramePixels/1000 + 1, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(facetest.PNGHeader(tt.w, tt.h))
			if !errors.Is(err, ErrFrameTooLarge) {
				t.Fatalf("expected ErrFrameTooLarge, got %v", err)
			}
		})
	}
}

func TestDecode_AcceptsRegularFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.png")
	writePNG(t, path, 640, 480)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Bounds().Dx() != 640 || img.Bounds().Dy() != 480 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}
