// Package upnp is a deliberately minimal stand-in for the UPnP
// port-mapping collaborator. spec.md treats this as an external
// collaborator outside the specification; no UPnP client library exists
// anywhere in the reference corpus, so this is a best-effort stub that
// always reports unavailability rather than a fabricated dependency.
package upnp

import "github.com/hyperzoom/hyperzoom-go/internal/debug"

// Mapping represents an active port mapping that can be removed on
// shutdown.
type Mapping struct {
	externalPort uint16
}

// TryMap attempts to create a UPnP port mapping for localPort. It always
// fails (ok=false) in this build — see DESIGN.md for why no real UPnP
// client is wired in.
func TryMap(localPort uint16) (m *Mapping, ok bool) {
	debug.Logf("UPnP mapping not available, skipping for port %d", localPort)
	return nil, false
}

// Remove releases the mapping. Best-effort; a nil mapping is a no-op.
func (m *Mapping) Remove() {
	if m == nil {
		return
	}
	debug.Logf("UPnP mapping removed for port %d", m.externalPort)
}

// ExternalPort reports the externally mapped port.
func (m *Mapping) ExternalPort() uint16 {
	if m == nil {
		return 0
	}
	return m.externalPort
}
