package keystore

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cryptoadvance/specter-keystore/pkg/media"
)

// Record is one stored, encrypted recovery phrase: the on-disk filename
// and the human-readable label obtained by stripping the device prefix.
type Record struct {
	Filename string
	Label    string
}

// ListRecords lists this device's records under dir.
//
// A file matches when it is exactly prefix (the default record) or
// prefix + separator + label; anything else under the directory, including
// another device's records, is ignored. The result is sorted by filename
// so presentation is stable. Returns ErrNoRecords when nothing matches.
func ListRecords(dir, prefix string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRecords
		}
		return nil, fmt.Errorf("keystore: failed to list records: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !media.MatchesPrefix(name, prefix) {
			continue
		}
		label := DefaultLabel
		if name != prefix {
			if l := strings.TrimPrefix(name, prefix+labelSeparator); l != "" {
				label = l
			}
		}
		records = append(records, Record{Filename: name, Label: label})
	}

	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Filename < records[j].Filename
	})
	return records, nil
}
