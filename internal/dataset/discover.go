package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Discover searches root for cleaned CSV candidates matching the
// Cleaned_*.csv naming convention. It returns all candidates ordered by
// path depth then name, shallowest first; callers take the first and may
// warn when more than one was found.
func Discover(root string) ([]string, error) {
	var found []string
	seen := make(map[string]bool)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		if !strings.EqualFold(filepath.Ext(base), ".csv") {
			return nil
		}
		if !strings.Contains(strings.ToLower(base), "cleaned") {
			return nil
		}
		abs, aerr := filepath.Abs(path)
		if aerr != nil {
			abs = path
		}
		if !seen[abs] {
			seen[abs] = true
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s for cleaned CSVs: %w", root, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("no cleaned CSV (Cleaned_*.csv) found under %s", root)
	}

	sort.Slice(found, func(i, j int) bool {
		di := strings.Count(found[i], string(filepath.Separator))
		dj := strings.Count(found[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return found[i] < found[j]
	})
	return found, nil
}
