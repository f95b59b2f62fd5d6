package report

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/linkvet/internal/vet/domain"
)

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(b)
}

func TestCSVWriter_HeaderAndRows(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := NewCSVWriter(fs, "out/result.csv", ',', domain.ReportHeaders())
	require.NoError(t, err)

	assert.Equal(t, "Page,Valid,Reason/Notes,Review,Url\n", readFile(t, fs, "out/result.csv"))

	require.NoError(t, w.Write(domain.NewRecord("home", "http://a.test/", domain.Clean(), "No")))
	// rows are flushed immediately
	assert.Contains(t, readFile(t, fs, "out/result.csv"), "home,Yes,,No,http://a.test/\n")

	require.NoError(t, w.Write(domain.NewRecord("home", "http://b.test/", domain.NotAllowedMIME("image/png"), "No")))
	require.NoError(t, w.Close())

	want := "Page,Valid,Reason/Notes,Review,Url\n" +
		"home,Yes,,No,http://a.test/\n" +
		"home,No,NOT ALLOWED MIME TYPE : image/png,No,http://b.test/\n"
	assert.Equal(t, want, readFile(t, fs, "out/result.csv"))
	assert.Equal(t, 2, w.Rows())
}

func TestCSVWriter_TruncatesExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "result.csv", []byte("stale data from an old run\n"), 0o644))

	w, err := NewCSVWriter(fs, "result.csv", ',', domain.ReportHeaders())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "Page,Valid,Reason/Notes,Review,Url\n", readFile(t, fs, "result.csv"))
}

func TestCSVWriter_DelimiterAndQuoting(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := NewCSVWriter(fs, "r.csv", ';', []string{"a", "b"})
	require.NoError(t, err)

	v := domain.TooManyMentions("free;offer", 3)
	require.NoError(t, w.Write(domain.NewRecord("g", "http://x.test/", v, "No")))
	require.NoError(t, w.Close())

	assert.Equal(t, "a;b\ng;No;\"MULTIPLE MENTIONS OF 'free;offer': 3\";No;http://x.test/\n", readFile(t, fs, "r.csv"))
}

func TestCSVWriter_WriteAfterClose(t *testing.T) {
	w, err := NewCSVWriter(afero.NewMemMapFs(), "r.csv", ',', domain.ReportHeaders())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.Write(domain.Record{}), ErrClosed)
}

func TestNewCSVWriter_ReadOnlyFs(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	_, err := NewCSVWriter(fs, "r.csv", ',', domain.ReportHeaders())
	assert.Error(t, err)
}
