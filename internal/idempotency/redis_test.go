package idempotency

import (
	"context"
	"testing"
	"time"

	"rtm-dispatcher/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisGuard(t *testing.T, window time.Duration) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, window, testLogger()), mr
}

func TestRedisAdmitOncePerID(t *testing.T) {
	g, _ := newRedisGuard(t, time.Minute)

	admitted, err := g.Admit(context.Background(), "r1", domain.KindBroadcast)
	if err != nil || !admitted {
		t.Fatalf("first Admit = (%v, %v), want (true, nil)", admitted, err)
	}
	admitted, err = g.Admit(context.Background(), "r1", domain.KindBroadcast)
	if err != nil || admitted {
		t.Fatalf("second Admit = (%v, %v), want (false, nil)", admitted, err)
	}

	// A different ID is unaffected.
	admitted, err = g.Admit(context.Background(), "r2", domain.KindBroadcast)
	if err != nil || !admitted {
		t.Fatalf("Admit(r2) = (%v, %v), want (true, nil)", admitted, err)
	}
}

func TestRedisExpiryReadmits(t *testing.T) {
	g, mr := newRedisGuard(t, time.Minute)

	if admitted, _ := g.Admit(context.Background(), "r1", domain.KindNudge); !admitted {
		t.Fatal("first Admit rejected")
	}

	mr.FastForward(30 * time.Second)
	if admitted, _ := g.Admit(context.Background(), "r1", domain.KindNudge); admitted {
		t.Fatal("Admit within window admitted, want duplicate")
	}

	mr.FastForward(31 * time.Second)
	if admitted, _ := g.Admit(context.Background(), "r1", domain.KindNudge); !admitted {
		t.Fatal("Admit after window rejected, want admitted")
	}
}

func TestRedisAdmitBackendDown(t *testing.T) {
	g, mr := newRedisGuard(t, time.Minute)
	mr.Close()

	if _, err := g.Admit(context.Background(), "r1", domain.KindNudge); err == nil {
		t.Fatal("Admit with redis down returned no error, want admission-unknown error")
	}
}
