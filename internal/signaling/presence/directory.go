// Package presence tracks the peers the engine can signal: the mapping from
// numeric contact handles to XMPP addresses, and the capability sets each of
// a contact's connected resources advertises.
package presence

import (
	"fmt"
	"sync"

	"mellium.im/xmpp/jid"
)

// Handle is an opaque numeric contact identifier. Handle 0 is never valid.
type Handle uint32

// Caps is a set of signaling capabilities advertised by one resource.
type Caps uint32

// Capability flags.
const (
	// CapGoogleVoice marks support for legacy Google Session voice calls.
	CapGoogleVoice Caps = 1 << iota
	// CapJingle marks baseline Jingle support.
	CapJingle
	// CapJingleAudio marks support for Jingle audio content.
	CapJingleAudio
	// CapJingleVideo marks support for Jingle video content.
	CapJingleVideo
	// CapGoogleTransportP2P marks support for the p2p transport.
	CapGoogleTransportP2P
)

// Has reports whether c contains every capability in want.
func (c Caps) Has(want Caps) bool { return c&want == want }

// Composite capability sets used when choosing a call recipient.
const (
	// CapsGoogleAudio is what a legacy Google voice call requires.
	CapsGoogleAudio = CapGoogleVoice
	// CapsJingleAudio is what a Jingle audio stream requires.
	CapsJingleAudio = CapJingle | CapJingleAudio | CapGoogleTransportP2P
	// CapsJingleVideo is what a Jingle video stream requires.
	CapsJingleVideo = CapJingle | CapJingleVideo | CapGoogleTransportP2P
)

// Directory is the in-memory peer registry. It hands out stable handles for
// bare JIDs and records per-resource capabilities as presence is learned.
type Directory struct {
	mu       sync.RWMutex
	byJID    map[string]Handle
	byHandle map[Handle]jid.JID
	caps     map[Handle]map[string]Caps
	next     Handle
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		byJID:    make(map[string]Handle),
		byHandle: make(map[Handle]jid.JID),
		caps:     make(map[Handle]map[string]Caps),
		next:     1,
	}
}

// HandleFor returns the handle for the bare form of j, allocating one if the
// contact has not been seen before.
func (d *Directory) HandleFor(j jid.JID) Handle {
	bare := j.Bare()
	key := bare.String()

	d.mu.Lock()
	defer d.mu.Unlock()

	if h, ok := d.byJID[key]; ok {
		return h
	}
	h := d.next
	d.next++
	d.byJID[key] = h
	d.byHandle[h] = bare
	return h
}

// HandleForAddress parses addr and returns its handle plus the resource part
// of the address, if any.
func (d *Directory) HandleForAddress(addr string) (Handle, string, error) {
	j, err := jid.Parse(addr)
	if err != nil {
		return 0, "", fmt.Errorf("parse address %q: %w", addr, err)
	}
	return d.HandleFor(j), j.Resourcepart(), nil
}

// Inspect returns the bare JID for a handle.
func (d *Directory) Inspect(h Handle) (jid.JID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	j, ok := d.byHandle[h]
	return j, ok
}

// FullAddress returns the fully-qualified address for a handle with the
// given resource appended.
func (d *Directory) FullAddress(h Handle, resource string) (string, error) {
	bare, ok := d.Inspect(h)
	if !ok {
		return "", fmt.Errorf("unknown handle %d", h)
	}
	if resource == "" {
		return bare.String(), nil
	}
	full, err := bare.WithResource(resource)
	if err != nil {
		return "", fmt.Errorf("address for handle %d: %w", h, err)
	}
	return full.String(), nil
}

// SetResourceCaps records the capability set advertised by one of the
// contact's resources, replacing any previous value.
func (d *Directory) SetResourceCaps(h Handle, resource string, caps Caps) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.caps[h]
	if !ok {
		m = make(map[string]Caps)
		d.caps[h] = m
	}
	m[resource] = caps
}

// RemoveResource forgets a resource, e.g. on unavailable presence.
func (d *Directory) RemoveResource(h Handle, resource string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.caps[h], resource)
}

// Known reports whether any capability information exists for the contact.
func (d *Directory) Known(h Handle) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.caps[h]) > 0
}

// ResourceHasCaps reports whether the contact's named resource advertises
// every capability in want.
func (d *Directory) ResourceHasCaps(h Handle, resource string, want Caps) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.caps[h][resource].Has(want)
}

// PickResource returns some resource of the contact advertising every
// capability in want, or "" if none does.
func (d *Directory) PickResource(h Handle, want Caps) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for resource, caps := range d.caps[h] {
		if caps.Has(want) {
			return resource
		}
	}
	return ""
}
