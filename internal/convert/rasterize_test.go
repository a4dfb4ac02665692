package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner imitates soffice and pdftoppm by writing files where the real tools would.
type fakeRunner struct {
	mu     sync.Mutex
	slides int
	failOn string
	calls  []string
	dirs   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return nil, []byte("boom"), errors.New("exit status 1")
	}
	switch name {
	case "soffice":
		outDir, input := args[len(args)-2], args[len(args)-1]
		f.dirs = append(f.dirs, filepath.Dir(outDir))
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		return nil, nil, os.WriteFile(filepath.Join(outDir, base+".pdf"), []byte("%PDF"), 0o600)
	case "pdftoppm":
		prefix := args[len(args)-1]
		f.dirs = append(f.dirs, filepath.Dir(prefix))
		for i := 1; i <= f.slides; i++ {
			name := fmt.Sprintf("%s-%d.png", prefix, i)
			if f.slides >= 10 {
				name = fmt.Sprintf("%s-%02d.png", prefix, i)
			}
			if err := os.WriteFile(name, []byte(fmt.Sprintf("img-%d", i)), 0o600); err != nil {
				return nil, nil, err
			}
		}
	}
	return nil, nil, nil
}

func assertScratchRemoved(t *testing.T, f *fakeRunner) {
	t.Helper()
	require.NotEmpty(t, f.dirs)
	for _, d := range f.dirs {
		_, err := os.Stat(d)
		assert.True(t, os.IsNotExist(err), "scratch dir %s still exists", d)
	}
}

func TestRasterize_PreservesSlideOrder(t *testing.T) {
	fr := &fakeRunner{slides: 12}
	r := NewRasterizer(Config{}, fr, nil)

	images, err := r.Rasterize(context.Background(), Source{Data: []byte("pptx"), Filename: "deck.pptx"})
	require.NoError(t, err)
	require.Len(t, images, 12)
	for i, img := range images {
		assert.Equal(t, fmt.Sprintf("img-%d", i+1), string(img))
	}
	assert.Equal(t, []string{"soffice", "pdftoppm"}, fr.calls)
	assertScratchRemoved(t, fr)
}

func TestRasterize_PDFSkipsOfficeConversion(t *testing.T) {
	fr := &fakeRunner{slides: 2}
	r := NewRasterizer(Config{}, fr, nil)

	images, err := r.Rasterize(context.Background(), Source{Data: []byte("%PDF"), Filename: "deck.pdf"})
	require.NoError(t, err)
	assert.Len(t, images, 2)
	assert.Equal(t, []string{"pdftoppm"}, fr.calls)
}

func TestRasterize_NoSlides(t *testing.T) {
	fr := &fakeRunner{slides: 0}
	r := NewRasterizer(Config{}, fr, nil)

	_, err := r.Rasterize(context.Background(), Source{Data: []byte("pptx"), Filename: "deck.pptx"})
	assert.ErrorIs(t, err, ErrNoSlidesExtracted)
	assertScratchRemoved(t, fr)
}

func TestRasterize_ConversionFailed(t *testing.T) {
	fr := &fakeRunner{slides: 3, failOn: "soffice"}
	r := NewRasterizer(Config{}, fr, nil)

	_, err := r.Rasterize(context.Background(), Source{Data: []byte("pptx"), Filename: "deck.pptx"})
	assert.ErrorIs(t, err, ErrConversionFailed)
	assert.Equal(t, []string{"soffice"}, fr.calls)
}

func TestRasterize_RemoteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pptx-bytes"))
	}))
	defer srv.Close()

	fr := &fakeRunner{slides: 1}
	r := NewRasterizer(Config{}, fr, nil)
	images, err := r.Rasterize(context.Background(), Source{URL: srv.URL + "/decks/intro.pptx"})
	require.NoError(t, err)
	assert.Len(t, images, 1)
	assert.Equal(t, []string{"soffice", "pdftoppm"}, fr.calls)
}

func TestRasterize_RemoteURLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	fr := &fakeRunner{slides: 1}
	r := NewRasterizer(Config{}, fr, nil)
	_, err := r.Rasterize(context.Background(), Source{URL: srv.URL + "/missing.pptx"})
	assert.ErrorIs(t, err, ErrConversionFailed)
	assert.Empty(t, fr.calls)
}

func TestRasterize_RemoteURLTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 65))
	}))
	defer srv.Close()

	fr := &fakeRunner{slides: 1}
	r := NewRasterizer(Config{MaxDownloadBytes: 64}, fr, nil)
	_, err := r.Rasterize(context.Background(), Source{URL: srv.URL + "/huge.pptx"})
	assert.ErrorIs(t, err, ErrConversionFailed)
	assert.ErrorIs(t, err, ErrSourceTooLarge)
	assert.Empty(t, fr.calls)

	r = NewRasterizer(Config{MaxDownloadBytes: 65}, fr, nil)
	_, err = r.Rasterize(context.Background(), Source{URL: srv.URL + "/huge.pptx"})
	require.NoError(t, err)
}
