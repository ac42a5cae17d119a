package transport

import (
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/build"
)

// artifactSet is an immutable snapshot of the last usable build.
type artifactSet struct {
	id      string
	kind    build.Kind
	hash    string
	built   time.Time
	byPath  map[string]build.Artifact
	ordered []build.AssetInfo
}

func newArtifactSet(ev build.Event) *artifactSet {
	set := &artifactSet{
		id:     ev.ID.String(),
		kind:   ev.Kind,
		built:  ev.Time,
		byPath: make(map[string]build.Artifact, len(ev.Artifacts)),
	}
	if ev.Stats != nil {
		set.hash = ev.Stats.Hash
	}
	for _, a := range ev.Artifacts {
		set.byPath[a.URLPath] = a
	}
	set.ordered = build.Assets(ev.Artifacts)
	return set
}

func (s *artifactSet) lookup(urlPath string) (build.Artifact, bool) {
	if s == nil {
		return build.Artifact{}, false
	}
	a, ok := s.byPath[urlPath]
	return a, ok
}

// failure is the last failed compile, kept while a show-error policy is active.
type failure struct {
	id       string
	kind     build.Kind
	messages []build.Message
}

func newFailure(ev build.Event) *failure {
	f := &failure{id: ev.ID.String(), kind: ev.Kind}
	if ev.Stats != nil {
		f.messages = ev.Stats.Errors
	}
	if ev.Cause != nil {
		f.messages = append(f.messages, build.Message{Text: ev.Cause.Error()})
	}
	return f
}
