package monitor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"aave-hf-watcher/internal/alerting"
	"aave-hf-watcher/internal/fetcher"
)

var testWallet = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type fakePositions struct {
	mu       sync.Mutex
	readings []string
	errs     []error
	calls    int
}

func (f *fakePositions) FetchPosition(_ context.Context, wallet common.Address) (fetcher.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return fetcher.Position{}, f.errs[i]
	}
	hf := "2"
	if len(f.readings) > 0 {
		if i >= len(f.readings) {
			i = len(f.readings) - 1
		}
		hf = f.readings[i]
	}
	return fetcher.Position{
		Wallet:               wallet,
		HealthFactor:         decimal.RequireFromString(hf),
		TotalCollateral:      decimal.NewFromInt(10000),
		TotalDebt:            decimal.NewFromInt(4000),
		AvailableBorrows:     decimal.NewFromInt(2000),
		LiquidationThreshold: decimal.NewFromInt(80),
		LoanToValue:          decimal.NewFromInt(75),
		Utilization:          decimal.NewFromInt(40),
	}, nil
}

type fakePrices struct {
	err error
}

func (f *fakePrices) FetchPrices(_ context.Context, feeds fetcher.FeedPair) (fetcher.Prices, error) {
	if f.err != nil {
		return fetcher.Prices{}, f.err
	}
	return fetcher.Prices{
		Primary:   fetcher.Price{Symbol: feeds.Primary.Symbol, FormattedPrice: "$3,000.00"},
		Secondary: fetcher.Price{Symbol: feeds.Secondary.Symbol, FormattedPrice: "$60,000.00"},
	}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []alerting.Request
	errs []error
	n    int
}

func (f *fakeNotifier) Send(_ context.Context, req alerting.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.n
	f.n++
	if i < len(f.errs) && f.errs[i] != nil {
		return f.errs[i]
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeNotifier) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

type recorder struct {
	mu            sync.Mutex
	samples       int
	notifications []error
}

func (r *recorder) RecordSample(context.Context, fetcher.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples++
	return nil
}

func (r *recorder) RecordNotification(_ context.Context, _ alerting.Request, sendErr error, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, sendErr)
	return nil
}

var errBoom = errors.New("boom")

func testComposer() alerting.Composer {
	return alerting.Composer{
		Retry:       time.Minute,
		Expire:      5 * time.Minute,
		ActionURL:   "https://app.aave.com/",
		ActionLabel: "AAVE App",
	}
}

func countMessages(buf *bytes.Buffer, msg string) int {
	needle := `"message":"` + msg + `"`
	n := 0
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, needle) {
			n++
		}
	}
	return n
}
