package uploader_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	uploader "github.com/Skryldev/adimage-uploader"
	"github.com/Skryldev/adimage-uploader/config"
	"github.com/Skryldev/adimage-uploader/core"
	"github.com/Skryldev/adimage-uploader/credentials"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
	"github.com/Skryldev/adimage-uploader/hooks"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

type entry struct {
	name string
	data []byte
}

func writeZip(t *testing.T, entries ...entry) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "input.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func smallPNG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: 50, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// inflatedPNG returns a 1x1 PNG whose header claims w x h pixels.
func inflatedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

// writeZipCorrupting stores entries uncompressed and flips the last byte of
// the entry named bad, so reading it fails its checksum.
func writeZipCorrupting(t *testing.T, bad string, entries ...entry) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	var target []byte
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
		if e.name == bad {
			target = e.data
		}
	}
	require.NoError(t, zw.Close())

	raw := buf.Bytes()
	at := bytes.Index(raw, target)
	require.GreaterOrEqual(t, at, 0)
	raw[at+len(target)-1] ^= 0xff

	p := filepath.Join(t.TempDir(), "input.zip")
	require.NoError(t, os.WriteFile(p, raw, 0o600))
	return p
}

func noisyJPEG(t *testing.T, w, h, quality int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

// recompressedSize mirrors the optimizer's lossy pass on raw.
func recompressedSize(t *testing.T, raw []byte, quality int) int {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Len()
}

// fakeUploader records every call and the peak number of overlapping calls.
type fakeUploader struct {
	mu       sync.Mutex
	reqs     map[string]core.UploadRequest
	inFlight atomic.Int64
	peak     atomic.Int64
	delay    func() time.Duration
	hashes   map[string]string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{reqs: map[string]core.UploadRequest{}, hashes: map[string]string{}}
}

func (f *fakeUploader) Upload(_ context.Context, req core.UploadRequest) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay != nil {
		time.Sleep(f.delay())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs[req.Name] = req
	if h, ok := f.hashes[req.Name]; ok {
		return h, nil
	}
	return "hash-" + req.Name, nil
}

func (f *fakeUploader) called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.reqs[name]
	return ok
}

type recordingObserver struct {
	mu      sync.Mutex
	updates []string
	steps   int
}

func (o *recordingObserver) Update(message string, increment int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates = append(o.updates, message)
	o.steps += increment
}
func (o *recordingObserver) Success(string) {}
func (o *recordingObserver) Error(string)   {}

func newUploader(t *testing.T, cfg config.Config, opts uploader.Options) *uploader.Uploader {
	t.Helper()
	if opts.Credentials == nil {
		opts.Credentials = credentials.Static("test-token")
	}
	u, err := uploader.New(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = u.Close() })
	return u
}

func readCSV(t *testing.T, p string) [][]string {
	t.Helper()
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

// ── End-to-end scenarios ──────────────────────────────────────────────────────

func TestRunOptimizesOversizedJPEGAndUploadsAll(t *testing.T) {
	big := noisyJPEG(t, 512, 512, 100)
	after := recompressedSize(t, big, 80)
	require.Less(t, after, len(big))

	cfg := config.Default()
	cfg.MaxImageBytes = int64(after + (len(big)-after)/2)

	input := writeZip(t,
		entry{"creatives/a.png", smallPNG(t, 10)},
		entry{"creatives/b.png", smallPNG(t, 60)},
		entry{"creatives/big.jpg", big},
		entry{"creatives/c.png", smallPNG(t, 110)},
		entry{"creatives/notes.txt", []byte("not an image")},
		entry{"__MACOSX/creatives/._a.png", []byte{0, 5, 22, 7}},
		entry{"creatives/d.png", smallPNG(t, 160)},
	)
	fake := newFakeUploader()
	fake.hashes["big.jpg"] = "abc123"
	obs := &recordingObserver{}
	metrics := hooks.NewInMemoryMetrics()

	u := newUploader(t, cfg, uploader.Options{
		Uploader: fake,
		Observer: obs,
		Hooks:    []core.Hook{hooks.NewMetricsHook(metrics)},
	})
	out := filepath.Join(t.TempDir(), "hashes.csv")
	summary, err := u.Run(context.Background(), uploader.RunParams{
		AccountID:  "act_1234",
		InputPath:  input,
		OutputPath: out,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 5, summary.Succeeded)
	assert.Empty(t, summary.Failed)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, out, summary.ReportPath)

	require.Len(t, summary.Results, 5)
	names := make([]string, 0, 5)
	for _, r := range summary.Results {
		names = append(names, r.ImageName)
		assert.Equal(t, core.StatusSuccess, r.Status, r.ImageName)
	}
	assert.Equal(t, []string{"a.png", "b.png", "big.jpg", "c.png", "d.png"}, names)
	assert.Equal(t, "abc123", summary.Results[2].ImageHash)
	assert.Equal(t, "creatives/big.jpg", summary.Results[2].ImagePath)

	sent := fake.reqs["big.jpg"]
	assert.Less(t, len(sent.Data), len(big))
	assert.LessOrEqual(t, int64(len(sent.Data)), cfg.MaxImageBytes)
	assert.Equal(t, "act_1234", sent.AccountID)
	assert.Equal(t, "test-token", sent.Credential)
	assert.False(t, fake.called("notes.txt"))

	rows := readCSV(t, out)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"image_name", "image_hash", "status", "error", "image_path"}, rows[0])
	assert.Equal(t, []string{"big.jpg", "abc123", "success", "", "creatives/big.jpg"}, rows[3])

	assert.Equal(t, "Starting image processing", obs.updates[0])
	assert.Equal(t, 5, obs.steps)
	assert.Equal(t, int64(5), metrics.Snapshot().StageCalls["uploading"])
	assert.Equal(t, int64(1), metrics.Snapshot().StageCalls["optimizing"])
}

func TestRunIsolatesAuthFailure(t *testing.T) {
	var auth sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"), true)
		_, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if hdr.Filename == "c.png" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`)
			return
		}
		_, _ = fmt.Fprintf(w, `{"images":{%q:{"hash":"h-%s","url":"https://example.test/%s"}}}`,
			hdr.Filename, hdr.Filename, hdr.Filename)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.APIBaseURL = srv.URL
	cfg.RetryDelay = time.Millisecond

	input := writeZip(t,
		entry{"a.png", smallPNG(t, 1)},
		entry{"b.png", smallPNG(t, 2)},
		entry{"c.png", smallPNG(t, 3)},
		entry{"d.png", smallPNG(t, 4)},
	)
	u := newUploader(t, cfg, uploader.Options{})
	summary, err := u.Run(context.Background(), uploader.RunParams{
		AccountID:  "42",
		InputPath:  input,
		OutputPath: filepath.Join(t.TempDir(), "out.csv"),
	})
	require.NoError(t, err)

	require.Len(t, summary.Results, 4)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, []string{"c.png"}, summary.Failed)

	failed := summary.Results[2]
	assert.Equal(t, core.StatusError, failed.Status)
	assert.Equal(t, "Facebook API Error: Error validating access token", failed.Error)
	assert.Empty(t, failed.ImageHash)
	assert.Equal(t, core.StateFailed, failed.State)

	for _, i := range []int{0, 1, 3} {
		r := summary.Results[i]
		assert.Equal(t, "h-"+r.ImageName, r.ImageHash)
	}
	_, ok := auth.Load("Bearer test-token")
	assert.True(t, ok)
}

func TestRunPreservesOrderAndBoundsConcurrency(t *testing.T) {
	var entries []entry
	for i := 0; i < 24; i++ {
		entries = append(entries, entry{fmt.Sprintf("img-%02d.png", i), smallPNG(t, uint8(i*10))})
	}
	input := writeZip(t, entries...)

	fake := newFakeUploader()
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(1))
	fake.delay = func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return time.Duration(rng.Intn(8)) * time.Millisecond
	}

	u := newUploader(t, config.Default(), uploader.Options{Uploader: fake})
	summary, err := u.Run(context.Background(), uploader.RunParams{
		AccountID:   "1",
		InputPath:   input,
		OutputPath:  filepath.Join(t.TempDir(), "out.json"),
		Concurrency: 3,
	})
	require.NoError(t, err)

	require.Len(t, summary.Results, 24)
	for i, r := range summary.Results {
		assert.Equal(t, entries[i].name, r.ImageName)
		assert.Equal(t, "hash-"+entries[i].name, r.ImageHash)
	}
	assert.LessOrEqual(t, fake.peak.Load(), int64(3))

	data, err := os.ReadFile(summary.ReportPath)
	require.NoError(t, err)
	var rows []map[string]string
	require.NoError(t, json.Unmarshal(data, &rows))
	assert.Len(t, rows, 24)
}

func TestRunUnsupportedFormatNeverUploaded(t *testing.T) {
	var disguised bytes.Buffer
	require.NoError(t, bmp.Encode(&disguised, image.NewRGBA(image.Rect(0, 0, 8, 8))))

	input := writeZip(t,
		entry{"ok.png", smallPNG(t, 9)},
		entry{"really-a-bitmap.png", disguised.Bytes()},
		entry{"broken.jpg", []byte("definitely not a jpeg")},
	)
	fake := newFakeUploader()
	u := newUploader(t, config.Default(), uploader.Options{Uploader: fake})
	summary, err := u.Run(context.Background(), uploader.RunParams{
		AccountID:  "1",
		InputPath:  input,
		OutputPath: filepath.Join(t.TempDir(), "out"),
		Format:     "csv",
	})
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	assert.True(t, summary.Results[0].Succeeded())

	assert.Equal(t, "unsupported format: bmp", summary.Results[1].Error)
	assert.Equal(t, core.StateInvalid, summary.Results[1].State)
	assert.False(t, fake.called("really-a-bitmap.png"))

	assert.Equal(t, "error processing image: unsupported image format", summary.Results[2].Error)
	assert.False(t, fake.called("broken.jpg"))

	assert.Equal(t, []string{"really-a-bitmap.png", "broken.jpg"}, summary.Failed)
	assert.Equal(t, filepath.Join(filepath.Dir(summary.ReportPath), "out.csv"), summary.ReportPath)
}

func TestRunExcessivePixelCountFailsOnlyThatItem(t *testing.T) {
	input := writeZip(t,
		entry{"a.png", smallPNG(t, 1)},
		entry{"bomb.png", inflatedPNG(t, 40000, 40000)},
		entry{"c.png", smallPNG(t, 3)},
	)
	fake := newFakeUploader()
	u := newUploader(t, config.Default(), uploader.Options{Uploader: fake})
	out := filepath.Join(t.TempDir(), "out.csv")
	summary, err := u.Run(context.Background(), uploader.RunParams{AccountID: "1", InputPath: input, OutputPath: out})
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, []string{"bomb.png"}, summary.Failed)
	assert.Equal(t, core.StateInvalid, summary.Results[1].State)
	assert.Contains(t, summary.Results[1].Error, "exceed the input pixel limit")
	assert.False(t, fake.called("bomb.png"))
	assert.Len(t, readCSV(t, out), 4)
}

// ── Fatal errors ──────────────────────────────────────────────────────────────

func TestRunCorruptEntryWritesPartialReport(t *testing.T) {
	input := writeZipCorrupting(t, "c.png",
		entry{"a.png", smallPNG(t, 1)},
		entry{"b.png", smallPNG(t, 2)},
		entry{"c.png", smallPNG(t, 3)},
		entry{"d.png", smallPNG(t, 4)},
	)
	fake := newFakeUploader()
	u := newUploader(t, config.Default(), uploader.Options{Uploader: fake})
	out := filepath.Join(t.TempDir(), "out.csv")
	summary, err := u.Run(context.Background(), uploader.RunParams{
		AccountID: "1", InputPath: input, OutputPath: out, Concurrency: 1,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindArchiveRead))
	assert.ErrorIs(t, err, zip.ErrChecksum)

	require.NotNil(t, summary)
	assert.Equal(t, 4, summary.Total)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "hash-a.png", summary.Results[0].ImageHash)
	assert.False(t, fake.called("d.png"))

	assert.Equal(t, out, summary.ReportPath)
	rows := readCSV(t, out)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a.png", "hash-a.png", "success", "", "a.png"}, rows[1])
	assert.Equal(t, "b.png", rows[2][0])
}

type failingCreds struct{ calls atomic.Int64 }

func (f *failingCreds) Credential(context.Context) (string, error) {
	f.calls.Add(1)
	return "", apperrors.New(apperrors.KindCredential, "test", apperrors.ErrTokenMissing)
}

func TestRunCredentialFailureIsFatal(t *testing.T) {
	input := writeZip(t, entry{"a.png", smallPNG(t, 1)}, entry{"b.png", smallPNG(t, 2)})
	fake := newFakeUploader()
	creds := &failingCreds{}

	u := newUploader(t, config.Default(), uploader.Options{Uploader: fake, Credentials: creds})
	summary, err := u.Run(context.Background(), uploader.RunParams{
		AccountID: "1", InputPath: input, OutputPath: filepath.Join(t.TempDir(), "out.csv"),
	})
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, apperrors.IsKind(err, apperrors.KindCredential))
	assert.ErrorIs(t, err, apperrors.ErrTokenMissing)
	assert.Equal(t, int64(1), creds.calls.Load())
	assert.False(t, fake.called("a.png"))
}

func TestRunEmptyArchiveSkipsCredential(t *testing.T) {
	input := writeZip(t, entry{"readme.txt", []byte("hi")})
	creds := &failingCreds{}
	u := newUploader(t, config.Default(), uploader.Options{Uploader: newFakeUploader(), Credentials: creds})

	out := filepath.Join(t.TempDir(), "out.csv")
	summary, err := u.Run(context.Background(), uploader.RunParams{AccountID: "1", InputPath: input, OutputPath: out})
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Empty(t, summary.Results)
	assert.Zero(t, creds.calls.Load())
	assert.Len(t, readCSV(t, out), 1)
}

func TestRunMissingArchive(t *testing.T) {
	u := newUploader(t, config.Default(), uploader.Options{Uploader: newFakeUploader()})
	_, err := u.Run(context.Background(), uploader.RunParams{
		AccountID: "1", InputPath: filepath.Join(t.TempDir(), "nope.zip"), OutputPath: "out.csv",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindArchiveRead))
}

type failingSink struct{}

func (failingSink) Write(context.Context, []core.Result, string, string) (string, error) {
	return "", errors.New("disk full")
}

func TestRunReportFailureKeepsResults(t *testing.T) {
	input := writeZip(t, entry{"a.png", smallPNG(t, 1)})
	u := newUploader(t, config.Default(), uploader.Options{Uploader: newFakeUploader(), Sink: failingSink{}})
	summary, err := u.Run(context.Background(), uploader.RunParams{
		AccountID: "1", InputPath: input, OutputPath: "out.csv",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindReportWrite))
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestRunRejectsBadParams(t *testing.T) {
	u := newUploader(t, config.Default(), uploader.Options{Uploader: newFakeUploader()})
	_, err := u.Run(context.Background(), uploader.RunParams{InputPath: "x.zip", OutputPath: "o.csv"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfig))

	_, err = u.Run(context.Background(), uploader.RunParams{
		AccountID: "1", InputPath: "x.zip", OutputPath: "o.csv", Format: "pdf",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfig))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Concurrency = 0
	_, err := uploader.New(cfg, uploader.Options{})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfig))
}
