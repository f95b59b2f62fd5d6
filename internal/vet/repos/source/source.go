// Package source loads the grouped URL lists a run verifies.
package source

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/haukened/linkvet/internal/vet/domain"
	"github.com/haukened/linkvet/internal/vet/repos/document"
)

// Load reads a document mapping group names to URL lists and returns the
// groups sorted by name. Blank URLs are dropped; a group whose value is not a
// list of strings fails the load.
func Load(fs afero.Fs, path string) ([]domain.LinkGroup, error) {
	raw, err := document.Read(fs, path)
	if err != nil {
		return nil, err
	}
	groups, err := FromMap(raw)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", path, err)
	}
	return groups, nil
}

// FromMap converts an already parsed document.
func FromMap(raw map[string]any) ([]domain.LinkGroup, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	slices.Sort(names)

	groups := make([]domain.LinkGroup, 0, len(names))
	for _, name := range names {
		links, err := document.Strings(raw[name])
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", name, err)
		}
		kept := links[:0]
		for _, l := range links {
			if l = strings.TrimSpace(l); l != "" {
				kept = append(kept, l)
			}
		}
		groups = append(groups, domain.LinkGroup{Name: name, Links: kept})
	}
	return groups, nil
}

// Count returns the total number of links across groups.
func Count(groups []domain.LinkGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Links)
	}
	return n
}
