package orchestrator

import (
	"context"
	"log/slog"
	"os"

	"github.com/talefetch/talefetch/internal/license"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeLicenses issues fixed rights for every item.
type fakeLicenses struct {
	rights *license.Rights
	err    error
}

func (f *fakeLicenses) Rights(_ context.Context, _ string) (*license.Rights, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rights, nil
}

// stubWatcher reports a fixed availability and never transitions.
type stubWatcher struct {
	available bool
}

func (w *stubWatcher) Available() bool { return w.available }

func (w *stubWatcher) Subscribe() (<-chan bool, func()) {
	return make(chan bool), func() {}
}
