package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doctext/constants"
	"github.com/joseph-ayodele/doctext/internal/common"
	"github.com/joseph-ayodele/doctext/internal/docx"
	"github.com/joseph-ayodele/doctext/internal/docx/docxtest"
	"github.com/joseph-ayodele/doctext/internal/entity"
	"github.com/joseph-ayodele/doctext/internal/extract"
	"github.com/joseph-ayodele/doctext/internal/legacy"
	"github.com/joseph-ayodele/doctext/internal/repository"
	"github.com/joseph-ayodele/doctext/internal/scratch"
)

type fakeDecoder struct {
	text string
	err  error

	mu       sync.Mutex
	calls    int
	sawFile  bool
	lastPath string
}

func (f *fakeDecoder) Decode(_ context.Context, path string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPath = path
	_, err := os.Stat(path)
	f.sawFile = err == nil
	return f.text, f.err
}

type panicExtractor struct{}

func (panicExtractor) Extract(context.Context, string) (extract.TextExtractionResult, error) {
	panic("boom")
}

type fixture struct {
	dir     string
	decoder *fakeDecoder
	proc    *Processor
}

func newFixture(t *testing.T, jobs repository.ExtractJobRepository) *fixture {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scratch")
	store, err := scratch.NewStore(dir, nil)
	require.NoError(t, err)
	dec := &fakeDecoder{}
	proc := NewProcessor(nil, store,
		extract.NewDocxAdapter(docx.NewExtractor(nil), nil),
		extract.NewLegacyAdapter(dec, time.Second, nil),
		jobs,
	)
	return &fixture{dir: dir, decoder: dec, proc: proc}
}

func (f *fixture) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "transient copy must not outlive the call")
}

func TestExtract_DocxParagraphs(t *testing.T) {
	f := newFixture(t, nil)
	out := f.proc.Extract(context.Background(), Request{
		FileName: "report.docx",
		Content:  bytes.NewReader(docxtest.FromParagraphs("A", "", "B")),
	})
	require.True(t, out.OK(), "%v", out.Err())
	assert.Equal(t, "A\n\nB", out.Text)
	assert.Equal(t, constants.FormatXMLContainer, out.Format)
	assert.Equal(t, "docx-xml", out.Method)
	assert.Equal(t, uuid.Nil, out.JobID)
	f.assertScratchEmpty(t)
}

func TestExtract_UppercaseSuffix(t *testing.T) {
	f := newFixture(t, nil)
	out := f.proc.Extract(context.Background(), Request{
		FileName: "REPORT.DOCX",
		Content:  bytes.NewReader(docxtest.FromParagraphs("x")),
	})
	require.True(t, out.OK())
	assert.Equal(t, "x", out.Text)
}

func TestExtract_EmptyFileNameWritesNothing(t *testing.T) {
	for _, name := range []string{"", "   "} {
		f := newFixture(t, nil)
		out := f.proc.Extract(context.Background(), Request{FileName: name, Content: strings.NewReader("data")})
		require.False(t, out.OK())
		assert.Equal(t, common.KindInvalidInput, out.Failure.Kind)
		assert.Empty(t, out.Text)
		f.assertScratchEmpty(t)
	}
}

func TestExtract_OverlongFileName(t *testing.T) {
	f := newFixture(t, nil)
	out := f.proc.Extract(context.Background(), Request{
		FileName: strings.Repeat("a", MaxFileNameLength) + ".doc",
		Content:  strings.NewReader("data"),
	})
	require.False(t, out.OK())
	assert.Equal(t, common.KindInvalidInput, out.Failure.Kind)
	assert.Zero(t, f.decoder.calls)
}

func TestExtract_Unsupported(t *testing.T) {
	f := newFixture(t, nil)
	out := f.proc.Extract(context.Background(), Request{FileName: "notes.pdf", Content: strings.NewReader("%PDF")})
	require.False(t, out.OK())
	assert.Equal(t, common.KindUnsupportedFormat, out.Failure.Kind)
	assert.Equal(t, constants.FormatUnsupported, out.Format)
	assert.Zero(t, f.decoder.calls)
	f.assertScratchEmpty(t)
}

func TestExtract_LegacyToolFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.decoder.err = common.NewExtractionError(common.KindToolFailure, "bad magic", nil)

	out := f.proc.Extract(context.Background(), Request{FileName: "old.doc", Content: strings.NewReader("junk")})
	require.False(t, out.OK())
	assert.Equal(t, common.KindToolFailure, out.Failure.Kind)
	assert.Equal(t, "bad magic", out.Failure.Detail)
	assert.True(t, f.decoder.sawFile, "decoder runs against the persisted copy")
	assert.Equal(t, f.dir, filepath.Dir(f.decoder.lastPath))
	f.assertScratchEmpty(t)
}

func TestExtract_LegacySuccess(t *testing.T) {
	f := newFixture(t, nil)
	f.decoder.text = "Hello\n"

	out := f.proc.Extract(context.Background(), Request{FileName: "Old.DOC", Content: strings.NewReader("bin")})
	require.True(t, out.OK())
	assert.Equal(t, "Hello\n", out.Text)
	assert.Equal(t, constants.FormatLegacyBinary, out.Format)
	assert.Equal(t, "legacy-decoder", out.Method)
	f.assertScratchEmpty(t)
}

func TestExtract_TraversalNameStaysInScratch(t *testing.T) {
	f := newFixture(t, nil)
	f.decoder.text = "ok"

	out := f.proc.Extract(context.Background(), Request{FileName: "../../../etc/cron.d/evil.doc", Content: strings.NewReader("x")})
	require.True(t, out.OK())
	assert.Equal(t, f.dir, filepath.Dir(f.decoder.lastPath))
	assert.NotContains(t, filepath.Base(f.decoder.lastPath), "evil")
}

func TestExtract_CleanupForEveryKind(t *testing.T) {
	kinds := []common.ErrorKind{
		common.KindParseFailure,
		common.KindToolUnavailable,
		common.KindTimeout,
		common.KindToolFailure,
		common.KindInvocationFailure,
	}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			f := newFixture(t, nil)
			f.decoder.err = common.NewExtractionError(kind, "detail", nil)
			out := f.proc.Extract(context.Background(), Request{FileName: "x.doc", Content: strings.NewReader("x")})
			require.False(t, out.OK())
			assert.Equal(t, kind, out.Failure.Kind)
			assert.Empty(t, out.Text)
			f.assertScratchEmpty(t)
		})
	}

	t.Run("corrupt docx", func(t *testing.T) {
		f := newFixture(t, nil)
		out := f.proc.Extract(context.Background(), Request{FileName: "x.docx", Content: strings.NewReader("not a zip")})
		require.False(t, out.OK())
		assert.Equal(t, common.KindParseFailure, out.Failure.Kind)
		f.assertScratchEmpty(t)
	})
}

func TestExtract_UntypedErrorBecomesInternal(t *testing.T) {
	f := newFixture(t, nil)
	f.decoder.err = errors.New("surprise")
	out := f.proc.Extract(context.Background(), Request{FileName: "x.doc", Content: strings.NewReader("x")})
	require.False(t, out.OK())
	assert.Equal(t, common.KindInternal, out.Failure.Kind)
}

func TestExtract_PanicIsRecoveredAndCleaned(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scratch")
	store, err := scratch.NewStore(dir, nil)
	require.NoError(t, err)
	proc := NewProcessor(nil, store, panicExtractor{}, panicExtractor{}, nil)

	out := proc.Extract(context.Background(), Request{FileName: "x.docx", Content: strings.NewReader("x")})
	require.False(t, out.OK())
	assert.Equal(t, common.KindInternal, out.Failure.Kind)
	assert.Contains(t, out.Failure.Detail, "boom")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type brokenStore struct{ removed int }

func (b *brokenStore) Persist(string, io.Reader) (scratch.File, error) {
	return scratch.File{}, errors.New("disk full")
}
func (b *brokenStore) Remove(scratch.File) error { b.removed++; return nil }

func TestExtract_PersistFailureIsInternal(t *testing.T) {
	store := &brokenStore{}
	dec := &fakeDecoder{}
	proc := NewProcessor(nil, store, nil, extract.NewLegacyAdapter(dec, 0, nil), nil)

	out := proc.Extract(context.Background(), Request{FileName: "x.doc", Content: strings.NewReader("x")})
	require.False(t, out.OK())
	assert.Equal(t, common.KindInternal, out.Failure.Kind)
	assert.Zero(t, dec.calls)
	assert.Zero(t, store.removed, "nothing was written, nothing to remove")
}

type removeFailsStore struct {
	*scratch.Store
}

func (s removeFailsStore) Remove(f scratch.File) error {
	_ = s.Store.Remove(f)
	return errors.New("permission denied")
}

func TestExtract_CleanupErrorIsSwallowed(t *testing.T) {
	store, err := scratch.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	dec := &fakeDecoder{text: "fine"}
	proc := NewProcessor(nil, removeFailsStore{store}, nil, extract.NewLegacyAdapter(dec, 0, nil), nil)

	out := proc.Extract(context.Background(), Request{FileName: "x.doc", Content: strings.NewReader("x")})
	require.True(t, out.OK())
	assert.Equal(t, "fine", out.Text)
}

func TestExtract_CancelledContextStillExtracts(t *testing.T) {
	f := newFixture(t, nil)
	f.decoder.text = "done"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := f.proc.Extract(ctx, Request{FileName: "x.doc", Content: strings.NewReader("x")})
	require.True(t, out.OK())
	assert.Equal(t, "done", out.Text)
}

func TestExtract_CarriesRequestID(t *testing.T) {
	f := newFixture(t, nil)
	f.decoder.text = "t"
	ctx := common.WithRequestID(context.Background(), "req-42")
	out := f.proc.Extract(ctx, Request{FileName: "x.doc", Content: strings.NewReader("x")})
	assert.Equal(t, "req-42", out.RequestID)
}

func TestExtract_ConcurrentCallsDoNotCollide(t *testing.T) {
	f := newFixture(t, nil)
	var wg sync.WaitGroup
	results := make([]Outcome, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.proc.Extract(context.Background(), Request{
				FileName: "same.docx",
				Content:  bytes.NewReader(docxtest.FromParagraphs("p", string(rune('a'+i)))),
			})
		}(i)
	}
	wg.Wait()
	for i, out := range results {
		require.True(t, out.OK())
		assert.Equal(t, "p\n"+string(rune('a'+i)), out.Text)
	}
	f.assertScratchEmpty(t)
}

func TestExtract_RecordsJobs(t *testing.T) {
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	jobs := repository.NewExtractJobRepository(db, nil)

	f := newFixture(t, jobs)
	ok := f.proc.Extract(context.Background(), Request{
		FileName: "report.docx",
		Content:  bytes.NewReader(docxtest.FromParagraphs("A", "", "B")),
	})
	require.True(t, ok.OK())
	require.NotEqual(t, uuid.Nil, ok.JobID)

	row, err := jobs.Get(context.Background(), ok.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusTextOK), row.Status)
	assert.Equal(t, "DOCX", row.Format)
	require.NotNil(t, row.TextBytes)
	assert.Equal(t, int64(4), *row.TextBytes)
	assert.Len(t, row.ContentSHA256, 64)

	bad := f.proc.Extract(context.Background(), Request{FileName: "notes.pdf", Content: strings.NewReader("x")})
	require.False(t, bad.OK())
	row, err = jobs.Get(context.Background(), bad.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), row.Status)
	assert.Equal(t, "UNSUPPORTED", row.Format)
	require.NotNil(t, row.ErrorKind)
	assert.Equal(t, string(common.KindUnsupportedFormat), *row.ErrorKind)

	rejected := f.proc.Extract(context.Background(), Request{FileName: "", Content: strings.NewReader("x")})
	assert.Equal(t, uuid.Nil, rejected.JobID, "rejected before any job is started")
}

type failingJobs struct{}

func (failingJobs) Start(context.Context, repository.StartJob) (*entity.ExtractJob, error) {
	return nil, common.ErrDatabase
}
func (failingJobs) FinishSuccess(context.Context, uuid.UUID, string, int) error { return nil }
func (failingJobs) FinishFailure(context.Context, uuid.UUID, string, string) error {
	return nil
}
func (failingJobs) Get(context.Context, uuid.UUID) (*entity.ExtractJob, error) {
	return nil, common.ErrNotFound
}
func (failingJobs) List(context.Context, time.Time, time.Time, int) ([]entity.ExtractJob, error) {
	return nil, nil
}

func TestExtract_JobStoreErrorsDoNotChangeOutcome(t *testing.T) {
	f := newFixture(t, failingJobs{})
	f.decoder.text = "still works"
	out := f.proc.Extract(context.Background(), Request{FileName: "x.doc", Content: strings.NewReader("x")})
	require.True(t, out.OK())
	assert.Equal(t, "still works", out.Text)
	assert.Equal(t, uuid.Nil, out.JobID)
}

func TestExtract_RealDecoderToolFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	bin := filepath.Join(t.TempDir(), "fake-antiword")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 'bad magic' >&2\nexit 1\n"), 0o755))

	store, err := scratch.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	dec := legacy.NewDecoder(legacy.Config{Command: bin}, nil)
	proc := NewProcessor(nil, store, nil, extract.NewLegacyAdapter(dec, 5*time.Second, nil), nil)

	out := proc.Extract(context.Background(), Request{FileName: "old.doc", Content: strings.NewReader("junk")})
	require.False(t, out.OK())
	assert.Equal(t, common.KindToolFailure, out.Failure.Kind)
	assert.Equal(t, "bad magic", out.Failure.Detail)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtract_MissingExtractorIsInternal(t *testing.T) {
	store, err := scratch.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	proc := NewProcessor(nil, store, nil, nil, nil)

	out := proc.Extract(context.Background(), Request{FileName: "x.docx", Content: strings.NewReader("x")})
	require.False(t, out.OK())
	assert.Equal(t, common.KindInternal, out.Failure.Kind)
}
