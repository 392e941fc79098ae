package dir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/job"
	"github.com/matzehuels/mockup/pkg/source"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644))
	}
}

func TestNew(t *testing.T) {
	base := t.TempDir()
	touch(t, base, "cropped.png", "Caneca.JPG", "infantil.jpeg", "notes.txt", "CROPPED.jpg")
	require.NoError(t, os.Mkdir(filepath.Join(base, "sub.png"), 0755))

	s, err := New(base, "estampa.png", nil)
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	wantOverlay, _ := filepath.Abs("estampa.png")
	var got []string
	for {
		p, err := s.Next(context.Background())
		if errors.Is(err, source.ErrEndOfStream) {
			break
		}
		require.NoError(t, err)
		require.Equal(t, wantOverlay, p.URL)
		require.Equal(t, job.ID(p.Category), p.ID, "job id should equal the category")
		got = append(got, p.Category)
	}
	// Lexical file order: CROPPED.jpg, Caneca.JPG, cropped.png (dup), infantil.jpeg
	require.Equal(t, []string{"CROPPED", "CANECA", "INFANTIL"}, got)
	require.NoError(t, s.Close())
}

func TestNewErrors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), "o.png", nil)
	require.True(t, errs.Is(err, errs.ErrCodeIO), "err = %v", err)

	_, err = New(t.TempDir(), "", nil)
	require.True(t, errs.Is(err, errs.ErrCodeConfig), "err = %v", err)
}

func TestNextCancelled(t *testing.T) {
	base := t.TempDir()
	touch(t, base, "cropped.png")
	s, err := New(base, "o.png", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
