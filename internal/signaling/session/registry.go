package session

import (
	"fmt"

	"github.com/chorus-im/chorus/internal/signaling/media"
)

// maxStreams bounds the number of streams a session will hold, local and
// remote creations combined.
const maxStreams = 99

// googleStreamName is the fixed content name for Google dialect sessions,
// which carry exactly one audio stream.
const googleStreamName = "gtalk"

// streamSet is the ordered collection of a session's streams. Order is
// creation order; lookups are by wire name. All access happens under the
// session lock.
type streamSet struct {
	streams []*Stream
}

func (ss *streamSet) add(st *Stream) {
	ss.streams = append(ss.streams, st)
}

func (ss *streamSet) byName(name string) *Stream {
	for _, st := range ss.streams {
		if st.name == name {
			return st
		}
	}
	return nil
}

func (ss *streamSet) remove(st *Stream) {
	for i, s := range ss.streams {
		if s == st {
			ss.streams = append(ss.streams[:i], ss.streams[i+1:]...)
			return
		}
	}
}

func (ss *streamSet) len() int { return len(ss.streams) }

// all returns a copy of the stream slice so callers may mutate the set while
// iterating.
func (ss *streamSet) all() []*Stream {
	return append([]*Stream(nil), ss.streams...)
}

// nextName picks the first free audio<N> or video<N> name, counting from 1.
func (ss *streamSet) nextName(t media.Type) (string, error) {
	prefix := "audio"
	if t == media.TypeVideo {
		prefix = "video"
	}
	for n := 1; n <= maxStreams; n++ {
		name := fmt.Sprintf("%s%d", prefix, n)
		if ss.byName(name) == nil {
			return name, nil
		}
	}
	return "", ErrStreamLimit
}
