package graph

import (
	"errors"
	"fmt"
)

// ErrUnknownLinkType signals a link type outside the closed set below.
// It is a caller bug, not bad input: content files never name link types
// directly.
var ErrUnknownLinkType = errors.New("unknown link type")

// LinkType is the kind of a directed relation between two nodes.
type LinkType uint8

const (
	LinkNone LinkType = iota
	LinkBase
	LinkDerived
	LinkChild
	LinkParent
	LinkRelated
)

type linkInfo struct {
	name    string
	inverse LinkType
}

// linkTable holds every valid LinkType with its display name and inverse.
var linkTable = map[LinkType]linkInfo{
	LinkBase:    {"Base", LinkDerived},
	LinkDerived: {"Derived", LinkBase},
	LinkChild:   {"Child", LinkParent},
	LinkParent:  {"Parent", LinkChild},
	LinkRelated: {"Related", LinkRelated},
}

func unknownLinkType(t LinkType) error {
	return fmt.Errorf("%w: %d", ErrUnknownLinkType, uint8(t))
}

// Valid reports whether t is one of the declared link types.
func (t LinkType) Valid() bool {
	_, ok := linkTable[t]
	return ok
}

// Inverse returns the link type recorded on the target of a t edge.
func (t LinkType) Inverse() (LinkType, error) {
	info, ok := linkTable[t]
	if !ok {
		return LinkNone, unknownLinkType(t)
	}
	return info.inverse, nil
}

func (t LinkType) String() string {
	if info, ok := linkTable[t]; ok {
		return info.name
	}
	if t == LinkNone {
		return "None"
	}
	return fmt.Sprintf("LinkType(%d)", uint8(t))
}

// ParseLinkType maps a tag such as "Base" to its LinkType.
func ParseLinkType(tag string) (LinkType, error) {
	for t, info := range linkTable {
		if info.name == tag {
			return t, nil
		}
	}
	return LinkNone, fmt.Errorf("%w: %q", ErrUnknownLinkType, tag)
}
