package wire

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"github.com/chorus-im/chorus/internal/signaling/media"
)

// Payload decoding errors.
var (
	// ErrBadCodec indicates a payload-type element missing required
	// attributes.
	ErrBadCodec = errors.New("malformed payload-type element")
	// ErrBadCandidate indicates a candidate element missing required
	// attributes.
	ErrBadCandidate = errors.New("malformed candidate element")
)

// DescriptionNamespace returns the xmlns for a content description of the
// given media type in the given dialect.
func DescriptionNamespace(d Dialect, t media.Type) string {
	if d == DialectGoogle {
		return NSGoogleSessionPhone
	}
	if t == media.TypeVideo {
		return NSJingleDescriptionVideo
	}
	return NSJingleDescriptionAudio
}

// ParseCodecs decodes the payload-type children of a content description.
// Elements that are not payload-type are skipped; a payload-type without an
// id or name fails the whole parse.
func ParseCodecs(desc *etree.Element) ([]media.Codec, error) {
	var codecs []media.Codec
	for _, el := range desc.ChildElements() {
		if el.Tag != "payload-type" {
			continue
		}

		idStr := el.SelectAttrValue("id", "")
		name := el.SelectAttrValue("name", "")
		if idStr == "" || name == "" {
			return nil, ErrBadCodec
		}
		id, err := strconv.ParseUint(idStr, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: id %q", ErrBadCodec, idStr)
		}

		codec := media.Codec{ID: uint8(id), Name: name}
		if v := el.SelectAttrValue("clockrate", ""); v != "" {
			rate, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: clockrate %q", ErrBadCodec, v)
			}
			codec.ClockRate = uint(rate)
		}
		if v := el.SelectAttrValue("channels", ""); v != "" {
			ch, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: channels %q", ErrBadCodec, v)
			}
			codec.Channels = uint(ch)
		}
		codecs = append(codecs, codec)
	}
	return codecs, nil
}

// AddDescription appends a content description for the given dialect and
// media type, carrying one payload-type element per codec, and returns it.
func AddDescription(parent *etree.Element, d Dialect, t media.Type, codecs []media.Codec) *etree.Element {
	desc := parent.CreateElement("description")
	desc.CreateAttr("xmlns", DescriptionNamespace(d, t))
	for _, c := range codecs {
		pt := desc.CreateElement("payload-type")
		pt.CreateAttr("id", strconv.Itoa(int(c.ID)))
		pt.CreateAttr("name", c.Name)
		if c.ClockRate != 0 {
			pt.CreateAttr("clockrate", strconv.Itoa(int(c.ClockRate)))
		}
		if c.Channels != 0 {
			pt.CreateAttr("channels", strconv.Itoa(int(c.Channels)))
		}
	}
	return desc
}

// AddTransport appends the peer-to-peer transport element and returns it.
func AddTransport(parent *etree.Element) *etree.Element {
	trans := parent.CreateElement("transport")
	trans.CreateAttr("xmlns", NSGoogleTransportP2P)
	return trans
}

// ParseCandidates decodes the candidate children of a transport (or, in the
// Google dialect, session) element. Every attribute is mandatory; the first
// malformed candidate fails the parse.
func ParseCandidates(trans *etree.Element) ([]media.Candidate, error) {
	var cands []media.Candidate
	for _, el := range trans.ChildElements() {
		if el.Tag != "candidate" {
			continue
		}

		var c media.Candidate
		var ok = true
		str := func(attr string) string {
			v := el.SelectAttrValue(attr, "")
			if v == "" {
				ok = false
			}
			return v
		}

		c.Name = str("name")
		c.Address = str("address")
		portStr := str("port")
		c.Username = str("username")
		c.Password = str("password")
		prefStr := str("preference")
		c.Protocol = str("protocol")
		c.Type = str("type")
		netStr := str("network")
		genStr := str("generation")
		if !ok {
			return nil, ErrBadCandidate
		}

		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: port %q", ErrBadCandidate, portStr)
		}
		c.Port = uint16(port)

		pref, err := strconv.ParseFloat(prefStr, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: preference %q", ErrBadCandidate, prefStr)
		}
		c.Preference = pref

		network, err := strconv.ParseUint(netStr, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: network %q", ErrBadCandidate, netStr)
		}
		c.Network = uint8(network)

		gen, err := strconv.ParseUint(genStr, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: generation %q", ErrBadCandidate, genStr)
		}
		c.Generation = uint8(gen)

		cands = append(cands, c)
	}
	return cands, nil
}

// AddCandidates appends one candidate element per candidate to the given
// transport (or session) element.
func AddCandidates(parent *etree.Element, cands []media.Candidate) {
	for _, c := range cands {
		el := parent.CreateElement("candidate")
		el.CreateAttr("name", c.Name)
		el.CreateAttr("address", c.Address)
		el.CreateAttr("port", strconv.Itoa(int(c.Port)))
		el.CreateAttr("username", c.Username)
		el.CreateAttr("password", c.Password)
		el.CreateAttr("preference", strconv.FormatFloat(c.Preference, 'f', -1, 64))
		el.CreateAttr("protocol", c.Protocol)
		el.CreateAttr("type", c.Type)
		el.CreateAttr("network", strconv.Itoa(int(c.Network)))
		el.CreateAttr("generation", strconv.Itoa(int(c.Generation)))
	}
}
