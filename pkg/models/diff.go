package models

// DiffStatus classifies one path of a comparison
type DiffStatus string

const (
	// StatusIdentical means both sides hold the same entry
	StatusIdentical DiffStatus = "identical"
	// StatusNewInSource means the path only exists in the source
	StatusNewInSource DiffStatus = "new_in_source"
	// StatusNewInDestination means the path only exists in the destination
	StatusNewInDestination DiffStatus = "new_in_destination"
	// StatusModified means both sides hold the same kind with different content
	StatusModified DiffStatus = "modified"
	// StatusConflict means the two sides hold different kinds
	StatusConflict DiffStatus = "conflict"
	// StatusDeletedInSource means the path was removed from the source since the baseline
	StatusDeletedInSource DiffStatus = "deleted_in_source"
	// StatusDeletedInDestination means the path was removed from the destination since the baseline
	StatusDeletedInDestination DiffStatus = "deleted_in_destination"
)

// AllDiffStatuses lists statuses in report order
var AllDiffStatuses = []DiffStatus{
	StatusNewInSource,
	StatusNewInDestination,
	StatusModified,
	StatusConflict,
	StatusDeletedInSource,
	StatusDeletedInDestination,
	StatusIdentical,
}

// Reason strings recorded on diff nodes
const (
	ReasonSizeDiffers     = "size differs"
	ReasonModTimeDiffers  = "modification time differs"
	ReasonChecksumDiffers = "checksum differs"
)

// DiffNode is the classification of a single path. Exactly one entry is nil
// for the new/deleted statuses; both are set otherwise.
type DiffNode struct {
	Path   RelPath
	Status DiffStatus
	Source *Entry
	Dest   *Entry
	Reason string
}

// Entry returns whichever side is present, preferring the source
func (n *DiffNode) Entry() *Entry {
	if n.Source != nil {
		return n.Source
	}
	return n.Dest
}

// IsDir reports whether the present entry (source first) is a directory
func (n *DiffNode) IsDir() bool {
	e := n.Entry()
	return e != nil && e.IsDir()
}
