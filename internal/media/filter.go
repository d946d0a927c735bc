// Package media decides which attachments are eligible for download and how
// they are named on disk.
package media

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blockedby/tgdown/internal/telegram"
)

// ErrUnknownPolicy is returned by ParsePolicy for unsupported values.
var ErrUnknownPolicy = errors.New("unknown media policy")

// Policy selects which media classes are downloaded.
type Policy string

const (
	PolicyAll   Policy = "all"
	PolicyPhoto Policy = "photo"
	PolicyVideo Policy = "video"
)

// ParsePolicy parses a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAll, PolicyPhoto, PolicyVideo:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// HistoryFilter returns the server-side restriction for backlog scans.
// Only photos map onto a search filter that selects exactly what the
// Filter accepts; video documents sent as plain files would be missed by
// the server's video filter, so videos scan the full history.
func (p Policy) HistoryFilter() telegram.HistoryFilter {
	if p == PolicyPhoto {
		return telegram.HistoryPhotos
	}
	return telegram.HistoryAll
}

// Class is the media class used by policies.
type Class int

const (
	ClassNone Class = iota
	ClassPhoto
	ClassVideo
	ClassOther
)

func (c Class) String() string {
	switch c {
	case ClassPhoto:
		return "photo"
	case ClassVideo:
		return "video"
	case ClassOther:
		return "other"
	default:
		return "none"
	}
}

// Classify returns the class of m. A document is a video when it carries
// a video attribute or its MIME type starts with "video/".
func Classify(m *telegram.Media) Class {
	if m == nil {
		return ClassNone
	}
	switch m.Kind {
	case telegram.MediaPhoto:
		return ClassPhoto
	case telegram.MediaDocument:
		if m.HasVideo || strings.HasPrefix(strings.ToLower(m.MIMEType), "video/") {
			return ClassVideo
		}
		return ClassOther
	default:
		return ClassNone
	}
}

// Filter is the eligibility predicate shared by the backlog scanner and
// the live listener.
type Filter struct {
	Policy Policy
}

// ShouldDownload reports whether media is eligible under the policy.
func (f Filter) ShouldDownload(m *telegram.Media) bool {
	class := Classify(m)
	if class == ClassNone {
		return false
	}

	switch f.Policy {
	case PolicyAll:
		return true
	case PolicyPhoto:
		return class == ClassPhoto
	case PolicyVideo:
		return class == ClassVideo
	default:
		return false
	}
}
