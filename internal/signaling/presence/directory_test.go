package presence

import "testing"

func TestHandlesAreStablePerBareJID(t *testing.T) {
	d := NewDirectory()

	h1, res, err := d.HandleForAddress("romeo@example.net/orchard")
	if err != nil {
		t.Fatalf("HandleForAddress() error = %v", err)
	}
	if res != "orchard" {
		t.Errorf("resource = %q, want orchard", res)
	}

	// Same contact, different resource: same handle.
	h2, res, err := d.HandleForAddress("romeo@example.net/study")
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("handles differ for one contact: %d vs %d", h1, h2)
	}
	if res != "study" {
		t.Errorf("resource = %q, want study", res)
	}

	h3, _, err := d.HandleForAddress("mercutio@example.net")
	if err != nil {
		t.Fatal(err)
	}
	if h3 == h1 {
		t.Error("different contacts share a handle")
	}
}

func TestHandleForAddressRejectsGarbage(t *testing.T) {
	d := NewDirectory()
	if _, _, err := d.HandleForAddress("@@not a jid@@"); err == nil {
		t.Error("HandleForAddress accepted a malformed address")
	}
}

func TestFullAddress(t *testing.T) {
	d := NewDirectory()
	h, _, err := d.HandleForAddress("romeo@example.net/orchard")
	if err != nil {
		t.Fatal(err)
	}

	full, err := d.FullAddress(h, "study")
	if err != nil {
		t.Fatal(err)
	}
	if full != "romeo@example.net/study" {
		t.Errorf("FullAddress = %q", full)
	}

	bare, err := d.FullAddress(h, "")
	if err != nil {
		t.Fatal(err)
	}
	if bare != "romeo@example.net" {
		t.Errorf("bare FullAddress = %q", bare)
	}

	if _, err := d.FullAddress(Handle(9999), "x"); err == nil {
		t.Error("FullAddress accepted an unknown handle")
	}
}

func TestCapabilityLookup(t *testing.T) {
	d := NewDirectory()
	h, _, err := d.HandleForAddress("romeo@example.net")
	if err != nil {
		t.Fatal(err)
	}

	if d.Known(h) {
		t.Error("contact known before any caps were recorded")
	}

	d.SetResourceCaps(h, "orchard", CapsJingleAudio|CapsJingleVideo)
	d.SetResourceCaps(h, "mobile", CapsGoogleAudio)

	if !d.Known(h) {
		t.Error("contact unknown after caps were recorded")
	}
	if !d.ResourceHasCaps(h, "orchard", CapsJingleAudio) {
		t.Error("orchard lacks jingle audio")
	}
	if d.ResourceHasCaps(h, "mobile", CapsJingleAudio) {
		t.Error("mobile claims jingle audio")
	}

	if got := d.PickResource(h, CapsJingleVideo); got != "orchard" {
		t.Errorf("PickResource(video) = %q, want orchard", got)
	}
	if got := d.PickResource(h, CapsGoogleAudio|CapsJingleVideo); got != "" {
		t.Errorf("PickResource(impossible set) = %q, want none", got)
	}

	d.RemoveResource(h, "orchard")
	if d.PickResource(h, CapsJingleVideo) != "" {
		t.Error("removed resource still picked")
	}
}

func TestParseCaps(t *testing.T) {
	caps, err := ParseCaps([]string{"jingle", "jingle-audio", "google-transport-p2p"})
	if err != nil {
		t.Fatalf("ParseCaps() error = %v", err)
	}
	if !caps.Has(CapsJingleAudio) {
		t.Errorf("caps = %b, want jingle audio set", caps)
	}
	if caps.Has(CapJingleVideo) {
		t.Error("video capability set without being named")
	}

	if _, err := ParseCaps([]string{"quantum-voice"}); err == nil {
		t.Error("ParseCaps accepted an unknown capability name")
	}
}
