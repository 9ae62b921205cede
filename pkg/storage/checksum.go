package storage

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/sdejongh/robinhood/pkg/models"
)

// Supported checksum algorithms
const (
	ChecksumNone   = ""
	ChecksumMD5    = "md5"
	ChecksumBLAKE3 = "blake3"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 32*1024)
		return &buf
	},
}

// ValidateChecksum checks that algo is supported
func ValidateChecksum(algo string) error {
	switch algo {
	case ChecksumNone, ChecksumMD5, ChecksumBLAKE3:
		return nil
	}
	return fmt.Errorf("unsupported checksum algorithm %q (use md5 or blake3)", algo)
}

func newHash(algo string) (hash.Hash, error) {
	switch algo {
	case ChecksumMD5:
		return md5.New(), nil
	case ChecksumBLAKE3:
		return blake3.New(), nil
	case ChecksumNone:
		return nil, fmt.Errorf("no checksum algorithm selected")
	}
	return nil, ValidateChecksum(algo)
}

// Sum reads r to the end and returns its checksum
func Sum(algo string, r io.Reader) (models.Checksum, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)

	if _, err := io.CopyBuffer(h, r, *bufPtr); err != nil {
		return "", fmt.Errorf("failed to hash: %w", err)
	}
	return models.NewChecksum(algo, hex.EncodeToString(h.Sum(nil))), nil
}
