package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Skryldev/adimage-uploader/adapters/storage"
	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleResults() []core.Result {
	return []core.Result{
		{ImageName: "a.png", ImagePath: "batch/a.png", ImageHash: "abc123", Status: core.StatusSuccess},
		{ImageName: "b.gif", ImagePath: "batch/b.gif", Status: core.StatusError, Error: "unsupported format: bmp, image width (4000px) exceeds maximum allowed (1936px)"},
		{ImageName: "<c>.jpg", ImagePath: "c.jpg", Status: core.StatusError, Error: `Facebook API Error: "quoted" <b>`},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		explicit, output, fallback string
		want                       Format
	}{
		{"json", "out.csv", "csv", JSON},
		{"", "out.xlsx", "csv", Excel},
		{"", "out.HTML", "csv", HTML},
		{"", "out", "csv", CSV},
		{"", "out.v2", "json", JSON},
		{"EXCEL", "", "csv", Excel},
	}
	for _, tc := range tests {
		got, err := Resolve(tc.explicit, tc.output, tc.fallback)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%+v", tc)
	}

	_, err := Resolve("pdf", "out", "csv")
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "out.csv", OutputPath("out", CSV))
	assert.Equal(t, "out.csv", OutputPath("out.csv", CSV))
	assert.Equal(t, "out.xlsx", OutputPath("out", Excel))
	assert.Equal(t, "out.xlsx", OutputPath("out.xlsx", Excel))
	assert.Equal(t, "out.json.csv", OutputPath("out.json", CSV))
	assert.Equal(t, "results.2024.html", OutputPath("results.2024", HTML))
}

func TestRenderCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResults()[:2], CSV))
	want := "image_name,image_hash,status,error,image_path\n" +
		"a.png,abc123,success,,batch/a.png\n" +
		`b.gif,,error,"unsupported format: bmp, image width (4000px) exceeds maximum allowed (1936px)",batch/b.gif` + "\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResults(), JSON))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "abc123", rows[0]["image_hash"])
	assert.NotContains(t, rows[0], "error")
	assert.NotContains(t, rows[1], "image_hash")
	assert.Equal(t, "batch/b.gif", rows[1]["image_path"])

	buf.Reset()
	require.NoError(t, Render(&buf, nil, JSON))
	assert.Equal(t, "[]\n", buf.String())
}

func TestRenderExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResults(), Excel))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, excelHeaders, rows[0])
	assert.Equal(t, []string{"a.png", "abc123", "success", "", "batch/a.png"}, rows[1])
	assert.Equal(t, "error", rows[2][2])

	width, err := f.GetColWidth(sheetName, "B")
	require.NoError(t, err)
	assert.Equal(t, 40.0, width)
}

func TestRenderHTMLEscapes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResults(), HTML))
	out := buf.String()

	assert.Contains(t, out, "1 of 3 images uploaded")
	assert.Contains(t, out, `<td class="success">success</td>`)
	assert.Contains(t, out, "&lt;c&gt;.jpg")
	assert.NotContains(t, out, "<b>")
}

type recordingStore struct {
	keys []core.StorageKey
	body []byte
	meta map[string]string
	err  error
}

func (r *recordingStore) Put(_ context.Context, key core.StorageKey, rd io.Reader, meta map[string]string) error {
	if r.err != nil {
		return r.err
	}
	r.keys = append(r.keys, key)
	r.body, _ = io.ReadAll(rd)
	r.meta = meta
	return nil
}

func TestSinkWritesAndMirrors(t *testing.T) {
	dir := t.TempDir()
	mirror := &recordingStore{}
	sink := NewSink(storage.NewLocal("", 0), WithMirror(mirror))

	dest := filepath.Join(dir, "results")
	path, err := sink.Write(context.Background(), sampleResults(), "csv", dest)
	require.NoError(t, err)
	assert.Equal(t, dest+".csv", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "image_name,image_hash,status,error,image_path\n"))

	require.Len(t, mirror.keys, 1)
	assert.Equal(t, path, mirror.keys[0].Path)
	assert.Equal(t, data, mirror.body)
	assert.Equal(t, "text/csv; charset=utf-8", mirror.meta["Content-Type"])
}

func TestSinkMirrorFailureIsNotFatal(t *testing.T) {
	sink := NewSink(storage.NewLocal("", 0), WithMirror(&recordingStore{err: errors.New("unreachable")}))
	path, err := sink.Write(context.Background(), sampleResults(), "json", filepath.Join(t.TempDir(), "r.json"))
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestSinkPrimaryFailureIsReportWrite(t *testing.T) {
	sink := NewSink(&recordingStore{err: errors.New("read-only file system")})
	_, err := sink.Write(context.Background(), sampleResults(), "html", "out")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindReportWrite))

	_, err = sink.Write(context.Background(), sampleResults(), "pdf", "out")
	assert.True(t, apperrors.IsKind(err, apperrors.KindReportWrite))
}
