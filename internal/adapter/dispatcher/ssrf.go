package dispatcher

import "net"

// IsUnsafeTarget implements the §4.6 safety predicate: "target URLs in a
// server deployment must be refused if they resolve to loopback/private/
// link-local addresses; the core exposes a predicate for this, enforced
// above the dispatcher." Callers (the executor or its caller) apply this to
// every resolved address before dispatch.
func IsUnsafeTarget(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if ip.IsPrivate() {
		return true
	}
	if ip.IsUnspecified() {
		return true
	}
	return false
}
