package compare

import (
	"time"

	"github.com/sdejongh/robinhood/pkg/models"
)

// Comparator decides whether two entries of the same kind hold the same content
type Comparator interface {
	// Compare returns true when the entries match, or false with a reason
	Compare(source, dest models.Entry) (bool, string)

	// Name returns the name of the comparison method
	Name() string
}

// MetadataComparator compares size, modification time and, when both sides
// carry a comparable checksum, the checksum
type MetadataComparator struct {
	modifyWindow time.Duration
	useChecksum  bool
}

// NewMetadataComparator creates a comparator. Modification times closer
// than window are treated as equal.
func NewMetadataComparator(window time.Duration, useChecksum bool) *MetadataComparator {
	return &MetadataComparator{modifyWindow: window, useChecksum: useChecksum}
}

// Compare checks size first, then checksum, then modification time.
// Entries match only when every available attribute matches.
func (c *MetadataComparator) Compare(source, dest models.Entry) (bool, string) {
	if source.Size != dest.Size {
		return false, models.ReasonSizeDiffers
	}

	if c.useChecksum && source.Checksum.Comparable(dest.Checksum) && source.Checksum != dest.Checksum {
		return false, models.ReasonChecksumDiffers
	}

	if !c.sameTime(source, dest) {
		return false, models.ReasonModTimeDiffers
	}
	return true, ""
}

// Name returns the comparator name
func (c *MetadataComparator) Name() string {
	if c.useChecksum {
		return "size+checksum+modtime"
	}
	return "size+modtime"
}

func (c *MetadataComparator) sameTime(source, dest models.Entry) bool {
	if source.HasModTime() != dest.HasModTime() {
		return false
	}
	if !source.HasModTime() {
		return true
	}
	diff := source.ModTime.Sub(dest.ModTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= c.modifyWindow
}
