package convert

import (
	"context"
	"os"

	"github.com/talefetch/talefetch/internal/metadata"
)

// fakeProber serves canned durations and decode logs, recording which
// windows were probed.
type fakeProber struct {
	duration    float64
	durationErr error
	logs        map[float64]string
	windowErr   error
	windows     []float64
}

func (p *fakeProber) Duration(_ context.Context, _ string) (float64, error) {
	return p.duration, p.durationErr
}

func (p *fakeProber) DecodeWindow(_ context.Context, _ string, start, _ float64) (string, error) {
	p.windows = append(p.windows, start)
	if p.windowErr != nil {
		return "", p.windowErr
	}
	return p.logs[start], nil
}

// fakeTranscoder records the request and optionally materializes the
// output file so downstream stages have something to copy.
type fakeTranscoder struct {
	err     error
	payload []byte
	req     *TranscodeRequest
}

func (t *fakeTranscoder) Transcode(_ context.Context, req *TranscodeRequest) error {
	t.req = req
	if t.err != nil {
		return t.err
	}
	return os.WriteFile(req.OutputPath, t.payload, 0o644)
}

// fakeSource serves one fixed book by id and another by title search.
type fakeSource struct {
	book *metadata.Book
	err  error

	titleBook    *metadata.Book
	titleErr     error
	titleQueries []string
}

func (s *fakeSource) ByExternalID(_ context.Context, _ string) (*metadata.Book, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.book, nil
}

func (s *fakeSource) ByTitle(_ context.Context, title string) (*metadata.Book, error) {
	s.titleQueries = append(s.titleQueries, title)
	if s.titleErr != nil {
		return nil, s.titleErr
	}
	if s.titleBook == nil {
		return nil, metadata.ErrNotFound
	}
	return s.titleBook, nil
}
