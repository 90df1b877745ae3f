package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// ManifestFile is the name of the version manifest kept at the root of the
// pages branch. The format matches what version-aware doc hosts expect: a
// JSON array of entries, newest first.
const ManifestFile = "versions.json"

// VersionInfo is one published documentation version.
type VersionInfo struct {
	Version string   `json:"version"`
	Title   string   `json:"title"`
	Aliases []string `json:"aliases"`
}

// Manifest is the ordered set of published versions.
type Manifest struct {
	Entries []VersionInfo
}

// LoadManifest reads the manifest from path. A missing file yields an empty
// manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var entries []VersionInfo
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &Manifest{Entries: entries}, nil
}

// Save writes the manifest to path.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m.Entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Add inserts or updates a version entry. New versions go to the front
// (newest first); re-deploying an existing version keeps its position and
// its existing aliases, with new aliases unioned in. Aliases are stolen
// from any other version that previously held them. Aliases never vanish
// on redeploy because their directories stay published on the pages
// branch; detaching is Delete's job.
func (m *Manifest) Add(version, title string, aliases []string) {
	if title == "" {
		title = version
	}
	for _, alias := range aliases {
		if m.AliasOwner(alias) != version {
			m.removeAlias(alias)
		}
	}

	for i := range m.Entries {
		if m.Entries[i].Version == version {
			m.Entries[i].Title = title
			for _, alias := range aliases {
				if !slices.Contains(m.Entries[i].Aliases, alias) {
					m.Entries[i].Aliases = append(m.Entries[i].Aliases, alias)
				}
			}
			return
		}
	}

	entry := VersionInfo{Version: version, Title: title, Aliases: slices.Clone(aliases)}
	if entry.Aliases == nil {
		entry.Aliases = []string{}
	}
	m.Entries = append([]VersionInfo{entry}, m.Entries...)
}

// Remove deletes the entry for version and returns its aliases.
func (m *Manifest) Remove(version string) ([]string, bool) {
	for i := range m.Entries {
		if m.Entries[i].Version == version {
			aliases := m.Entries[i].Aliases
			m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
			return aliases, true
		}
	}
	return nil, false
}

// Find resolves ref as a version or an alias and returns the entry.
func (m *Manifest) Find(ref string) (*VersionInfo, bool) {
	for i := range m.Entries {
		if m.Entries[i].Version == ref {
			return &m.Entries[i], true
		}
	}
	for i := range m.Entries {
		if slices.Contains(m.Entries[i].Aliases, ref) {
			return &m.Entries[i], true
		}
	}
	return nil, false
}

// AliasOwner returns the version currently holding alias, or "".
func (m *Manifest) AliasOwner(alias string) string {
	for _, e := range m.Entries {
		if slices.Contains(e.Aliases, alias) {
			return e.Version
		}
	}
	return ""
}

func (m *Manifest) removeAlias(alias string) {
	for i := range m.Entries {
		m.Entries[i].Aliases = slices.DeleteFunc(m.Entries[i].Aliases, func(a string) bool {
			return a == alias
		})
	}
}
