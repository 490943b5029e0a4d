package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Group represents a named collection of packages in the remote catalog.
//
// A group is fetched once per run via group_show and cached on disk;
// the in-memory record is immutable thereafter.
type Group struct {
	// ID is the catalog identifier used for group_show and cache keys.
	ID string `json:"id"`

	// Name is the human-readable group name, used as the group's
	// directory name under the output root.
	Name string `json:"name"`

	// Packages lists the ids of the packages belonging to this group.
	Packages []string `json:"packages"`
}

// Package represents a dataset entry containing downloadable resources.
type Package struct {
	// ID is the catalog identifier used for package_show and cache keys.
	ID string `json:"id"`

	// Name is the package name (informational only).
	Name string `json:"name"`

	// Author is optional; when present it becomes an extra directory
	// segment under the package's download directory.
	Author string `json:"author"`

	// Resources are the downloadable files declared by the package.
	Resources []Resource `json:"resources"`
}

// Resource is a single downloadable file reference belonging to a package.
type Resource struct {
	// URL is where the file can be fetched from. A resource without a
	// URL cannot be downloaded and is filtered out.
	URL string `json:"url"`

	// Name is optional; when empty the file name falls back to the
	// URL's last path segment.
	Name string `json:"name"`

	// MimeType is the declared MIME type, matched case-insensitively
	// against the configured allow-set.
	MimeType string `json:"mimetype"`
}

// DecodeGroup parses a raw group_show result document into a Group.
// Fields beyond the typed record are deliberately dropped here; the
// full document survives only in the raw metadata snapshot.
func DecodeGroup(raw []byte) (*Group, error) {
	var g groupDoc
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode group document: %w", err)
	}

	group := &Group{
		ID:   g.ID,
		Name: g.Name,
	}
	for _, p := range g.Packages {
		if id := p.id(); id != "" {
			group.Packages = append(group.Packages, id)
		}
	}
	return group, nil
}

// DecodePackage parses a raw package_show result document into a Package.
func DecodePackage(raw []byte) (*Package, error) {
	var pkg Package
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("decode package document: %w", err)
	}
	return &pkg, nil
}

// groupDoc mirrors the parts of a group_show document we care about.
// Some CKAN deployments return package ids as plain strings, others as
// embedded package objects; both forms are accepted.
type groupDoc struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Packages []packageRef `json:"packages"`
}

type packageRef struct {
	str string
	obj struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
}

func (p *packageRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.str)
	}
	return json.Unmarshal(data, &p.obj)
}

func (p *packageRef) id() string {
	if p.str != "" {
		return p.str
	}
	if p.obj.ID != "" {
		return p.obj.ID
	}
	return p.obj.Name
}

// Dir returns the directory for this group's packages under base.
func (g *Group) Dir(base string) string {
	return path.Join(base, SanitizeFileName(g.Name))
}

// Dir returns the download directory for this package under base,
// appending the author as an extra segment when present.
func (p *Package) Dir(base string) string {
	if p.Author == "" {
		return base
	}
	return path.Join(base, SanitizeFileName(p.Author))
}

// FileName returns the local file name for the resource: the declared
// name when present, otherwise the last path segment of the URL, in
// both cases sanitized so it can never escape its directory.
func (r Resource) FileName() string {
	name := r.Name
	if name == "" {
		name = r.URL
		if u, err := url.Parse(r.URL); err == nil && u.Path != "" {
			name = u.Path
		}
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
	}
	return SanitizeFileName(name)
}

// HTTPSURL returns the resource URL with a plain http scheme upgraded
// to https. Already-https URLs are returned unchanged.
func (r Resource) HTTPSURL() string {
	if strings.HasPrefix(r.URL, "http://") {
		return "https://" + strings.TrimPrefix(r.URL, "http://")
	}
	return r.URL
}

var (
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots     = regexp.MustCompile(`\.+$`)
	multiWhitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFileName replaces characters that are invalid in file or
// directory names with underscores, trims trailing dots and collapses
// runs of whitespace. A path-separating name like "a/b.csv" becomes
// the single file name "a_b.csv".
func SanitizeFileName(name string) string {
	name = invalidFileChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = multiWhitespace.ReplaceAllString(name, " ")
	return strings.TrimRight(name, " ")
}
