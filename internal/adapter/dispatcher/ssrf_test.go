package dispatcher

import (
	"net"
	"testing"
)

func TestIsUnsafeTargetRejectsPrivateRanges(t *testing.T) {
	unsafe := []string{"127.0.0.1", "10.0.0.5", "192.168.1.1", "172.16.0.1", "169.254.1.1", "::1", "0.0.0.0"}
	for _, addr := range unsafe {
		if !IsUnsafeTarget(net.ParseIP(addr)) {
			t.Fatalf("expected %s to be flagged unsafe", addr)
		}
	}
}

func TestIsUnsafeTargetAllowsPublicAddresses(t *testing.T) {
	safe := []string{"8.8.8.8", "1.1.1.1", "93.184.216.34"}
	for _, addr := range safe {
		if IsUnsafeTarget(net.ParseIP(addr)) {
			t.Fatalf("expected %s to be allowed", addr)
		}
	}
}

func TestIsUnsafeTargetRejectsNil(t *testing.T) {
	if !IsUnsafeTarget(nil) {
		t.Fatal("expected an unparseable address to be treated as unsafe")
	}
}
