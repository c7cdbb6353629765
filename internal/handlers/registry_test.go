package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/mtbrandt/enipcore/internal/cip/protocol"
)

func TestRegistryExactMatch(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(0x01, uint8(protocol.CIPServiceGetAttributeSingle), func(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, bool, error) {
		called = true
		return protocol.CIPResponse{Status: 0x00}, true, nil
	})

	req := protocol.CIPRequest{Service: protocol.CIPServiceGetAttributeSingle, Path: protocol.CIPPath{Class: 0x01, Instance: 0x01}}
	resp, handled, err := r.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !handled || !called {
		t.Fatal("expected exact match to handle the request")
	}
	if resp.Status != 0x00 {
		t.Errorf("status = 0x%02X, want 0x00", resp.Status)
	}
}

func TestRegistryClassWildcard(t *testing.T) {
	r := NewRegistry()
	r.Register(ClassAny, uint8(protocol.CIPServiceReset), func(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, bool, error) {
		return protocol.CIPResponse{Status: 0x00}, true, nil
	})
	req := protocol.CIPRequest{Service: protocol.CIPServiceReset, Path: protocol.CIPPath{Class: 0x99}}
	_, handled, _ := r.Handle(context.Background(), req)
	if !handled {
		t.Error("ClassAny registration should match any class")
	}
}

func TestRegistryServiceWildcard(t *testing.T) {
	r := NewRegistry()
	r.Register(0x01, ServiceAny, func(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, bool, error) {
		return protocol.CIPResponse{Status: 0x00}, true, nil
	})
	req := protocol.CIPRequest{Service: protocol.CIPServiceGetAttributeAll, Path: protocol.CIPPath{Class: 0x01}}
	_, handled, _ := r.Handle(context.Background(), req)
	if !handled {
		t.Error("ServiceAny registration should match any service for class 0x01")
	}
}

func TestRegistryFallsThroughUnhandled(t *testing.T) {
	r := NewRegistry()
	r.Register(0x01, uint8(protocol.CIPServiceReset), func(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, bool, error) {
		return protocol.CIPResponse{}, false, nil
	})
	req := protocol.CIPRequest{Service: protocol.CIPServiceReset, Path: protocol.CIPPath{Class: 0x01}}
	_, handled, err := r.Handle(context.Background(), req)
	if handled || err != nil {
		t.Errorf("handled=%v err=%v, want false, nil", handled, err)
	}
}

func TestRegistryPropagatesError(t *testing.T) {
	r := NewRegistry()
	want := errors.New("boom")
	r.Register(0x01, uint8(protocol.CIPServiceReset), func(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, bool, error) {
		return protocol.CIPResponse{}, false, want
	})
	_, _, err := r.Handle(context.Background(), protocol.CIPRequest{Service: protocol.CIPServiceReset, Path: protocol.CIPPath{Class: 0x01}})
	if err != want {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestRegistryPrefersExactOverWildcard(t *testing.T) {
	r := NewRegistry()
	r.Register(ClassAny, ServiceAny, func(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, bool, error) {
		return protocol.CIPResponse{Status: 0xFF}, true, nil
	})
	r.Register(0x01, uint8(protocol.CIPServiceReset), func(ctx context.Context, req protocol.CIPRequest) (protocol.CIPResponse, bool, error) {
		return protocol.CIPResponse{Status: 0x00}, true, nil
	})
	resp, _, _ := r.Handle(context.Background(), protocol.CIPRequest{Service: protocol.CIPServiceReset, Path: protocol.CIPPath{Class: 0x01}})
	if resp.Status != 0x00 {
		t.Errorf("status = 0x%02X, want exact-match handler's 0x00", resp.Status)
	}
}

func TestRegistryNilReceiverIsSafe(t *testing.T) {
	var r *Registry
	_, handled, err := r.Handle(context.Background(), protocol.CIPRequest{})
	if handled || err != nil {
		t.Errorf("nil registry should report unhandled, got handled=%v err=%v", handled, err)
	}
}
