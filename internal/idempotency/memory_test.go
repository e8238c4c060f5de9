package idempotency

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rtm-dispatcher/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestMemoryAdmitOncePerID(t *testing.T) {
	g := NewMemory(time.Minute, 100, testLogger())

	admitted, err := g.Admit(context.Background(), "r1", domain.KindNudge)
	if err != nil || !admitted {
		t.Fatalf("first Admit = (%v, %v), want (true, nil)", admitted, err)
	}
	admitted, err = g.Admit(context.Background(), "r1", domain.KindNudge)
	if err != nil || admitted {
		t.Fatalf("second Admit = (%v, %v), want (false, nil)", admitted, err)
	}
}

func TestMemoryAdmitConcurrent(t *testing.T) {
	g := NewMemory(time.Minute, 1000, testLogger())

	const n = 64
	var admittedCount atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			admitted, err := g.Admit(context.Background(), "r1", domain.KindNudge)
			if err != nil {
				t.Errorf("Admit returned error: %v", err)
			}
			if admitted {
				admittedCount.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := admittedCount.Load(); got != 1 {
		t.Fatalf("%d concurrent submissions admitted %d times, want exactly 1", n, got)
	}
}

func TestMemoryExpiryReadmits(t *testing.T) {
	g := NewMemory(time.Minute, 100, testLogger())
	now := time.Unix(1000, 0)
	g.now = func() time.Time { return now }

	if admitted, _ := g.Admit(context.Background(), "r1", domain.KindNudge); !admitted {
		t.Fatal("first Admit rejected")
	}

	// Within the window the ID stays held.
	now = now.Add(30 * time.Second)
	if admitted, _ := g.Admit(context.Background(), "r1", domain.KindNudge); admitted {
		t.Fatal("Admit within window admitted, want duplicate")
	}

	// Past the window the ID is fresh again.
	now = now.Add(31 * time.Second)
	if admitted, _ := g.Admit(context.Background(), "r1", domain.KindNudge); !admitted {
		t.Fatal("Admit after window rejected, want admitted")
	}
}

func TestMemorySweepPurgesExpired(t *testing.T) {
	g := NewMemory(time.Minute, 100, testLogger())
	now := time.Unix(1000, 0)
	g.now = func() time.Time { return now }

	for _, id := range []string{"r1", "r2", "r3"} {
		if admitted, _ := g.Admit(context.Background(), id, domain.KindNudge); !admitted {
			t.Fatalf("Admit(%s) rejected", id)
		}
	}

	now = now.Add(2 * time.Minute)
	evicted, err := g.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if evicted != 3 {
		t.Errorf("Sweep evicted %d records, want 3", evicted)
	}
	if g.Len() != 0 {
		t.Errorf("guard holds %d records after sweep, want 0", g.Len())
	}
}

func TestMemoryCapacityBound(t *testing.T) {
	g := NewMemory(time.Hour, 3, testLogger())

	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		if admitted, _ := g.Admit(context.Background(), id, domain.KindNudge); !admitted {
			t.Fatalf("Admit(%s) rejected", id)
		}
	}

	if g.Len() > 3 {
		t.Fatalf("guard holds %d records, capacity is 3", g.Len())
	}
	// The oldest record was evicted to make room, so r1 admits as fresh even
	// though its window has not elapsed.
	if admitted, _ := g.Admit(context.Background(), "r1", domain.KindNudge); !admitted {
		t.Error("r1 still held after capacity eviction, want fresh admission")
	}
	// The newest record is still held.
	if admitted, _ := g.Admit(context.Background(), "r5", domain.KindNudge); admitted {
		t.Error("r5 admitted twice, want duplicate")
	}
}

func TestMemoryReadmitAfterLazyEviction(t *testing.T) {
	// A stale FIFO entry left by lazy eviction must not take the fresh record
	// for the same ID with it when it reaches the head.
	g := NewMemory(time.Minute, 100, testLogger())
	now := time.Unix(1000, 0)
	g.now = func() time.Time { return now }

	g.Admit(context.Background(), "r1", domain.KindNudge)
	now = now.Add(2 * time.Minute)
	// Lazy eviction inside Admit replaces the record; the old queue entry lingers.
	if admitted, _ := g.Admit(context.Background(), "r1", domain.KindNudge); !admitted {
		t.Fatal("expired r1 not readmitted")
	}
	if _, err := g.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if admitted, _ := g.Admit(context.Background(), "r1", domain.KindNudge); admitted {
		t.Fatal("fresh r1 record lost to a stale queue entry")
	}
}
