package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/renhe-cloud/gaswatch/internal/domain"
)

func TestRefresh_CachesSnapshot(t *testing.T) {
	fetch := func(context.Context) (domain.BalanceSnapshot, error) {
		return domain.BalanceSnapshot{Values: map[string]float64{domain.ReadingMeterBalance: 42}}, nil
	}
	c := New("balance", fetch, time.Hour, zap.NewNop())

	if _, ok := c.Current(); ok {
		t.Fatal("Current() ok = true before first refresh")
	}

	snap, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if snap.Values[domain.ReadingMeterBalance] != 42 {
		t.Errorf("refreshed meter_balance = %v, want 42", snap.Values[domain.ReadingMeterBalance])
	}

	cur, ok := c.Current()
	if !ok {
		t.Fatal("Current() ok = false after refresh")
	}
	if cur.Values[domain.ReadingMeterBalance] != 42 {
		t.Errorf("cached meter_balance = %v, want 42", cur.Values[domain.ReadingMeterBalance])
	}
	if _, ok := c.FetchedAt(); !ok {
		t.Error("FetchedAt() ok = false after refresh")
	}
}

func TestRefresh_SingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}
	c := New("test", fetch, time.Hour, zap.NewNop())

	const callers = 8
	results := make([]int, callers)
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		i := i
		go func() {
			started.Done()
			v, err := c.Refresh(context.Background())
			if err != nil {
				t.Errorf("Refresh() error: %v", err)
			}
			results[i] = v
			done.Done()
		}()
	}

	started.Wait()
	// Give every goroutine a chance to reach the singleflight gate.
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	for i, v := range results {
		if v != 7 {
			t.Errorf("caller %d got %d, want 7", i, v)
		}
	}
}

func TestRefresh_StaleOnFailure(t *testing.T) {
	var fail atomic.Bool
	fetch := func(context.Context) (int, error) {
		if fail.Load() {
			return 0, errors.New("portal down")
		}
		return 99, nil
	}
	c := New("test", fetch, time.Hour, zap.NewNop())

	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	before, _ := c.Current()

	fail.Store(true)
	if _, err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected error from failing fetch")
	}

	after, ok := c.Current()
	if !ok {
		t.Fatal("Current() ok = false after failed refresh")
	}
	if after != before {
		t.Errorf("Current() = %v after failure, want unchanged %v", after, before)
	}
}

func TestRefresh_FailureBeforeFirstSuccess(t *testing.T) {
	fetch := func(context.Context) (int, error) {
		return 0, errors.New("portal down")
	}
	c := New("test", fetch, time.Hour, zap.NewNop())

	if _, err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := c.Current(); ok {
		t.Error("Current() ok = true, want false when nothing ever succeeded")
	}
}

func TestRun_RefreshesImmediatelyAndPeriodically(t *testing.T) {
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	}
	c := New("test", fetch, 20*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("fetch calls = %d after 2s, want >= 3", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestRun_SurvivesFetchErrors(t *testing.T) {
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("always failing")
	}
	c := New("test", fetch, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("fetch calls = %d after 2s, want >= 2", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
