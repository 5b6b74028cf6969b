package presence

import "fmt"

var capNames = map[string]Caps{
	"google-voice":         CapGoogleVoice,
	"jingle":               CapJingle,
	"jingle-audio":         CapJingleAudio,
	"jingle-video":         CapJingleVideo,
	"google-transport-p2p": CapGoogleTransportP2P,
}

// ParseCaps folds a list of capability names into a Caps set. Unknown names
// fail the parse.
func ParseCaps(names []string) (Caps, error) {
	var caps Caps
	for _, name := range names {
		c, ok := capNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown capability %q", name)
		}
		caps |= c
	}
	return caps, nil
}
