package perception

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var _ BatchSource = (*UDPSource)(nil)

func newLoopbackSource(t *testing.T, ctx context.Context) (*UDPSource, *net.UDPConn) {
	t.Helper()
	src, err := ListenUDP(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { src.Close() })

	conn, err := net.Dial("udp", src.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return src, conn.(*net.UDPConn)
}

func TestUDPSourceReceivesBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src, conn := newLoopbackSource(t, ctx)

	want := testScenario(PatternOffset).BatchAt(0)
	payload, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("batch mismatch (-want +got):\n%s", diff)
	}
}

func TestUDPSourceSkipsMalformedDatagram(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src, conn := newLoopbackSource(t, ctx)

	if _, err := conn.Write([]byte("not json")); err != nil {
		t.Fatalf("Write garbage: %v", err)
	}
	want := testScenario(PatternStraight).BatchAt(time.Second)
	payload, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("Write batch: %v", err)
	}

	got, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got.StampNanos != want.StampNanos {
		t.Errorf("stamp = %d, want %d", got.StampNanos, want.StampNanos)
	}
	if src.Malformed() != 1 {
		t.Errorf("malformed = %d, want 1", src.Malformed())
	}
}

func TestUDPSourceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src, _ := newLoopbackSource(t, ctx)

	errCh := make(chan error, 1)
	go func() {
		_, err := src.Next()
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Next returned %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Next did not return after cancel")
	}
}

func TestUDPSourceCanceledBeforeNext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src, _ := newLoopbackSource(t, ctx)
	cancel()

	if _, err := src.Next(); !errors.Is(err, context.Canceled) {
		t.Errorf("Next returned %v, want context.Canceled", err)
	}
}

func TestListenUDPBadAddress(t *testing.T) {
	if _, err := ListenUDP(context.Background(), "127.0.0.1:notaport"); err == nil {
		t.Error("got nil error for malformed address")
	}
}
