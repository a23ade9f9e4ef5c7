package testutils

import (
	"context"
	"sync"

	"github.com/srg/blelink/internal/device"
)

// FakeScanner replays a fixed list of advertisements.
//
// With Hold set, Scan keeps running after the replay until its context ends,
// the way a radio scan does.
type FakeScanner struct {
	Advertisements []device.Advertisement
	Err            error
	Hold           bool

	mu       sync.Mutex
	allowDup []bool
}

var _ device.ScanningDevice = (*FakeScanner)(nil)

func (f *FakeScanner) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	f.mu.Lock()
	f.allowDup = append(f.allowDup, allowDup)
	f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	for _, adv := range f.Advertisements {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		handler(adv)
	}
	if f.Hold {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

// AllowDup returns the duplicate flag passed to each Scan call.
func (f *FakeScanner) AllowDup() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.allowDup...)
}
