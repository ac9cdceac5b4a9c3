package relay_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/parleyvoice/parley/internal/relay"
	"github.com/parleyvoice/parley/internal/wsclient"
)

// startGateway serves the relay on a real listener so websocket upgrades
// work, and returns its base URL.
func startGateway(t *testing.T, deepgram, openaiStub http.HandlerFunc) string {
	t.Helper()
	return startGatewayWith(t, deepgram, openaiStub, nil)
}

func startGatewayWith(t *testing.T, deepgram, openaiStub http.HandlerFunc, tune func(*relay.Config)) string {
	t.Helper()

	srv := newTestServerWith(t, deepgram, openaiStub, tune)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.App().Listener(ln)
	t.Cleanup(func() { srv.Shutdown() })

	return "http://" + ln.Addr().String()
}

func dialGateway(t *testing.T, baseURL, mode string) *wsclient.Client {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := wsclient.New(baseURL, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// The listener goroutine may not be accepting yet.
	var err error
	for i := 0; i < 20; i++ {
		if err = client.Connect(ctx, mode, url.Values{}); err == nil {
			return client
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("connect gateway: %v", err)
	return nil
}

func readEvent(t *testing.T, client *wsclient.Client) *wsclient.Event {
	t.Helper()

	type result struct {
		ev  *wsclient.Event
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ev, _, err := client.Read()
		ch <- result{ev, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("read event: %v", r.err)
		}
		if r.ev == nil {
			t.Fatal("expected a text event, got audio")
		}
		return r.ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out reading gateway event")
		return nil
	}
}

func TestGatewaySessionLifecycle(t *testing.T) {
	is := is.New(t)

	base := startGateway(t, nil, nil)
	client := dialGateway(t, base, "solo")
	defer client.Close()

	ready := readEvent(t, client)
	is.Equal(ready.Type, "ready")
	is.True(ready.Session != "")

	is.NoErr(client.Start())

	listening := readEvent(t, client)
	is.Equal(listening.Type, "status")
	is.Equal(listening.Phase, "listening")
	is.Equal(listening.Label, "Listening...")

	is.NoErr(client.Stop())

	idle := readEvent(t, client)
	is.Equal(idle.Type, "status")
	is.Equal(idle.Phase, "idle")
	is.Equal(idle.Label, "Ready")
}

func TestGatewayHonorsMaxUtterance(t *testing.T) {
	is := is.New(t)

	// With no audio arriving, each capture ends at MaxUtterance and the
	// session re-arms. A short cap makes that visible within the event
	// timeout; the 5s default would not.
	base := startGatewayWith(t, nil, nil, func(cfg *relay.Config) {
		cfg.MaxUtterance = 40 * time.Millisecond
	})
	client := dialGateway(t, base, "solo")
	defer client.Close()

	is.Equal(readEvent(t, client).Type, "ready")
	is.NoErr(client.Start())

	first := readEvent(t, client)
	is.Equal(first.Phase, "listening")

	second := readEvent(t, client)
	is.Equal(second.Phase, "listening")

	is.NoErr(client.Stop())
}

func TestGatewayRestartableAfterStop(t *testing.T) {
	is := is.New(t)

	base := startGateway(t, nil, nil)
	client := dialGateway(t, base, "meeting")
	defer client.Close()

	is.Equal(readEvent(t, client).Type, "ready")

	for round := 0; round < 2; round++ {
		is.NoErr(client.Start())
		listening := readEvent(t, client)
		is.Equal(listening.Phase, "listening")

		is.NoErr(client.Stop())
		idle := readEvent(t, client)
		is.Equal(idle.Phase, "idle")
	}
}
