package models

import "time"

// ConflictReport records a path whose two sides hold different kinds and
// that the chosen mode leaves for the user to resolve
type ConflictReport struct {
	Path       RelPath  `json:"path"`
	SourceKind Kind     `json:"source_kind"`
	DestKind   Kind     `json:"destination_kind"`
	Mode       SyncMode `json:"mode"`
	Reason     string   `json:"reason"`
}

// DuplicateMember is one copy inside a duplicate group
type DuplicateMember struct {
	Side    Side      `json:"side"`
	Path    RelPath   `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// DuplicateGroup gathers files holding the same content.
// Members are ordered newest first, so Members[0] is the copy to keep.
type DuplicateGroup struct {
	Checksum Checksum          `json:"checksum"`
	Size     int64             `json:"size"`
	Members  []DuplicateMember `json:"members"`
}

// Redundant returns every member except the one to keep
func (g DuplicateGroup) Redundant() []DuplicateMember {
	if len(g.Members) < 2 {
		return nil
	}
	return g.Members[1:]
}

// WastedBytes is the space held by redundant copies
func (g DuplicateGroup) WastedBytes() int64 {
	return g.Size * int64(len(g.Redundant()))
}
