package timeline

import (
	"errors"
	"fmt"
)

var (
	ErrNilTrack     = errors.New("timeline: nil track")
	ErrNilMedia     = errors.New("timeline: nil media")
	ErrNilArchetype = errors.New("timeline: nil archetype")

	ErrTrackNotFound   = errors.New("timeline: track does not belong to this timeline")
	ErrMediaNotFound   = errors.New("timeline: media does not belong to this track")
	ErrMediaOwned      = errors.New("timeline: media already owned by another track")
	ErrMediaLimit      = errors.New("timeline: media count limit reached")
	ErrNotRegistered   = errors.New("timeline: archetype not registered")
	ErrDuplicateTypeID = errors.New("timeline: archetype type id already registered")

	// ErrReentrant is returned when an archetype or extension callback tries
	// to mutate the timeline while the core is encoding or decoding it.
	ErrReentrant = errors.New("timeline: mutation during codec callback")

	ErrUnsupportedVersion = errors.New("timeline: unsupported format version")
	ErrUnknownTrackType   = errors.New("timeline: unknown track type")
	ErrCorruptStream      = errors.New("timeline: corrupt stream")
)

// UnsupportedVersionError reports a format version outside the known set.
type UnsupportedVersionError struct {
	Version int32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("timeline: unsupported format version %d", e.Version)
}

func (e *UnsupportedVersionError) Is(target error) bool {
	return target == ErrUnsupportedVersion
}

// UnknownTrackTypeError reports a serialized track whose type id has no
// registered archetype.
type UnknownTrackTypeError struct {
	TypeID uint8
	Index  int
}

func (e *UnknownTrackTypeError) Error() string {
	return fmt.Sprintf("timeline: unknown track type id %d (track %d)", e.TypeID, e.Index)
}

func (e *UnknownTrackTypeError) Is(target error) bool {
	return target == ErrUnknownTrackType
}
