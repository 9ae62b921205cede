package transfer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sdejongh/robinhood/pkg/models"
)

// lsjsonItem is one element of the array printed by "rclone lsjson"
type lsjsonItem struct {
	Path    string            `json:"Path"`
	Size    int64             `json:"Size"`
	ModTime string            `json:"ModTime"`
	IsDir   bool              `json:"IsDir"`
	Hashes  map[string]string `json:"Hashes"`
}

// hashPreference picks the digest to keep when rclone reports several
var hashPreference = []string{"md5", "blake3", "sha1"}

// decodeListing reads an lsjson array element by element and passes each
// entry to yield until it returns false
func decodeListing(r io.Reader, yield func(models.RawEntry) bool) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read listing: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("unexpected listing token %v", tok)
	}

	for dec.More() {
		var item lsjsonItem
		if err := dec.Decode(&item); err != nil {
			return fmt.Errorf("failed to decode listing entry: %w", err)
		}
		entry, err := item.entry()
		if err != nil {
			return err
		}
		if !yield(entry) {
			return nil
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read listing end: %w", err)
	}
	return nil
}

func (it lsjsonItem) entry() (models.RawEntry, error) {
	entry := models.RawEntry{
		Path:  it.Path,
		Size:  it.Size,
		IsDir: it.IsDir,
	}
	if it.IsDir || entry.Size < 0 {
		entry.Size = 0
	}

	if it.ModTime != "" {
		t, err := time.Parse(time.RFC3339Nano, it.ModTime)
		if err != nil {
			return models.RawEntry{}, fmt.Errorf("invalid modification time for %s: %w", it.Path, err)
		}
		entry.ModTime = t
	}

	entry.Checksum = pickHash(it.Hashes)
	return entry, nil
}

func pickHash(hashes map[string]string) models.Checksum {
	for _, algo := range hashPreference {
		if sum := hashes[algo]; sum != "" {
			return models.NewChecksum(algo, sum)
		}
	}
	algos := make([]string, 0, len(hashes))
	for algo, sum := range hashes {
		if sum != "" {
			algos = append(algos, algo)
		}
	}
	if len(algos) == 0 {
		return ""
	}
	sort.Strings(algos)
	return models.NewChecksum(algos[0], hashes[algos[0]])
}
