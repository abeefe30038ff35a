package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tradelab/internal/config"
	"tradelab/internal/domain"
	"tradelab/internal/store"
)

type fakeClient struct {
	calls   int
	failN   int
	lastReq marketdata.GetBarsRequest
	bars    []marketdata.Bar
}

func (f *fakeClient) GetBars(_ string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.calls++
	f.lastReq = req
	if f.calls <= f.failN {
		return nil, errors.New("503 service unavailable")
	}
	return f.bars, nil
}

func day(d int) time.Time { return time.Date(2024, 1, d, 5, 0, 0, 0, time.UTC) }

func testAlpaca(client barsClient, feed string) *AlpacaSource {
	s := newAlpacaSource(client, config.Alpaca{Feed: feed, RateLimitPerMin: 6000, MaxRetries: 2})
	s.retryBase = time.Millisecond
	return s
}

func TestAlpacaSourceRetriesAndSorts(t *testing.T) {
	fc := &fakeClient{
		failN: 2,
		bars: []marketdata.Bar{
			{Timestamp: day(3), Open: 2, High: 2, Low: 2, Close: 2, Volume: 200},
			{Timestamp: day(2), Open: 1, High: 1, Low: 1, Close: 1, Volume: 100},
		},
	}
	src := testAlpaca(fc, "iex")

	bars, err := src.Bars(context.Background(), "spy", day(1), day(5))
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if fc.calls != 3 {
		t.Errorf("GetBars called %d times, want 3", fc.calls)
	}
	if fc.lastReq.Feed != "iex" || fc.lastReq.TimeFrame != marketdata.OneDay {
		t.Errorf("request = %+v, want iex daily bars", fc.lastReq)
	}
	if len(bars) != 2 || bars[0].Close != 1 || bars[0].Symbol != "SPY" || bars[1].Volume != 200 {
		t.Errorf("bars = %+v, want two SPY bars in time order", bars)
	}
}

func TestAlpacaSourceGivesUp(t *testing.T) {
	fc := &fakeClient{failN: 10}
	src := testAlpaca(fc, "sip")
	if _, err := src.Bars(context.Background(), "SPY", day(1), day(5)); err == nil {
		t.Fatal("Bars succeeded, want error")
	}
	if fc.calls != 3 {
		t.Errorf("GetBars called %d times, want 3", fc.calls)
	}
}

func TestAlpacaSourceRateLimited(t *testing.T) {
	fc := &fakeClient{failN: 10}
	src := newAlpacaSource(fc, config.Alpaca{Feed: "sip", RateLimitPerMin: 1, MaxRetries: 3})
	src.retryBase = time.Millisecond

	// The single token goes to the first call; the retry would have to wait a
	// minute, which the deadline does not allow.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := src.Bars(ctx, "SPY", day(1), day(5)); err == nil {
		t.Fatal("Bars succeeded, want error")
	}
	if fc.calls != 1 {
		t.Errorf("GetBars called %d times, want 1", fc.calls)
	}
	if d := time.Since(start); d > time.Second {
		t.Errorf("Bars took %v, want it to give up before the deadline", d)
	}
}

func TestLoadRejectsEmptyAndInvalid(t *testing.T) {
	ctx := context.Background()

	_, err := Load(ctx, testAlpaca(&fakeClient{}, "sip"), "SPY", day(1), day(5))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Load of empty feed error = %v, want ErrInvalidInput", err)
	}

	dup := &fakeClient{bars: []marketdata.Bar{
		{Timestamp: day(2), Close: 1},
		{Timestamp: day(2), Close: 1},
	}}
	_, err = Load(ctx, testAlpaca(dup, "sip"), "SPY", day(1), day(5))
	var iie *domain.InvalidInputError
	if !errors.As(err, &iie) || iie.Index != 1 {
		t.Errorf("Load of duplicate timestamps error = %v, want InvalidInputError at 1", err)
	}
}

func TestSyncThenStoreSource(t *testing.T) {
	ctx := context.Background()
	ps := store.NewParquetStore(t.TempDir())
	fc := &fakeClient{bars: []marketdata.Bar{
		{Timestamp: day(2), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000},
		{Timestamp: day(3), Open: 10.5, High: 12, Low: 10, Close: 11.5, Volume: 1500},
	}}

	n, err := Sync(ctx, testAlpaca(fc, "sip"), ps, "qqq", day(1), day(5))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if n != 2 {
		t.Errorf("Sync wrote %d bars, want 2", n)
	}

	bars, err := Load(ctx, &StoreSource{Store: ps}, "QQQ", day(1), day(5))
	if err != nil {
		t.Fatalf("Load from store: %v", err)
	}
	if len(bars) != 2 || bars[1].Close != 11.5 {
		t.Errorf("bars = %+v, want the two synced bars", bars)
	}
}
