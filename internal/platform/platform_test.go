package platform

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mtbrandt/enipcore/internal/cpf"
	"github.com/mtbrandt/enipcore/internal/dispatch"
	"github.com/mtbrandt/enipcore/internal/endpoint"
	"github.com/mtbrandt/enipcore/internal/logging"
)

type fakeRouter struct{}

func (fakeRouter) NotifyUnconnected(ctx context.Context, payload []byte) ([]byte, bool) {
	return nil, false
}

func (fakeRouter) NotifyConnected(ctx context.Context, connID uint32, payload []byte) ([]byte, bool) {
	return nil, false
}

func testAdapter(t *testing.T) *Adapter {
	t.Helper()
	ep := endpoint.New(endpoint.Config{
		Router:             fakeRouter{},
		ListenIP:           net.ParseIP("127.0.0.1"),
		TCPPort:            0,
		Identity:           dispatch.IdentityInfo{VendorID: 0x1234, ProductName: "test"},
		Support:            dispatch.DefaultSupportConfig(),
		CPFOptions:         cpf.DefaultOptions,
		SessionCapacity:    20,
		DelayQueueCapacity: 2,
	}, net.ParseIP("127.0.0.1"))

	logger, err := logging.NewLogger(logging.LogLevelError, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })

	return New(Config{
		ListenIP:           "127.0.0.1",
		TCPPort:            0,
		UDPPort:            0,
		TickInterval:       10 * time.Millisecond,
		SessionCapacity:    20,
		DelayQueueCapacity: 2,
	}, ep, logger)
}

func TestAdapterBindsAndStops(t *testing.T) {
	a := testAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	select {
	case <-a.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("adapter did not become ready in time")
	}

	if a.Addr().(*net.TCPAddr).Port == 0 {
		t.Error("adapter should be listening on a resolved port")
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("adapter did not stop within timeout")
	}
}

func TestAdapterRegisterSessionRoundTrip(t *testing.T) {
	a := testAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	select {
	case <-a.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("adapter did not become ready in time")
	}

	conn, err := net.Dial("tcp", a.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	registerReq := []byte{
		0x65, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	}
	if _, err := conn.Write(registerReq); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp := make([]byte, 28)
	n, err := conn.Read(resp)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n < 24 {
		t.Fatalf("short response: %d bytes", n)
	}
	if resp[0] != 0x65 {
		t.Errorf("response command = 0x%02X, want 0x65", resp[0])
	}
	status := uint32(resp[8]) | uint32(resp[9])<<8 | uint32(resp[10])<<16 | uint32(resp[11])<<24
	if status != 0 {
		t.Errorf("response status = 0x%08X, want 0", status)
	}
}
