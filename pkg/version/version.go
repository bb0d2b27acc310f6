// Package version resolves desired Kubernetes component versions against
// the versions a package repository actually offers, and checks minor
// version consistency across dependent components.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrVersionNotFound is returned when a specifier matches nothing in the
// available version list. Resolution failure is always surfaced, never
// silently substituted.
var ErrVersionNotFound = errors.New("version not found")

// wildcardPattern matches a bare major.minor specifier like "1.28".
var wildcardPattern = regexp.MustCompile(`^\d+\.\d+$`)

// Specifier is a desired version: either exact ("1.28.3") or a
// minor-version wildcard ("1.28") resolving to the newest patch release.
type Specifier struct {
	Raw      string
	Wildcard bool
}

// ParseSpecifier classifies a raw version string.
func ParseSpecifier(raw string) (Specifier, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "v"))
	if raw == "" {
		return Specifier{}, fmt.Errorf("empty version specifier")
	}
	return Specifier{
		Raw:      raw,
		Wildcard: wildcardPattern.MatchString(raw),
	}, nil
}

// String returns the raw specifier.
func (s Specifier) String() string {
	return s.Raw
}

// Resolve picks the concrete version to install from available, which
// must be ordered newest-first.
//
// A wildcard matches the first entry within its minor version. An exact
// specifier matches the first entry equal to it, or prefixed by it with
// a package-manager suffix ("1.28.0-1.1" matches "1.28.0").
func (s Specifier) Resolve(available []string) (string, error) {
	for _, v := range available {
		candidate := strings.TrimPrefix(v, "v")
		if s.Wildcard {
			if strings.HasPrefix(candidate, s.Raw+".") {
				return candidate, nil
			}
			continue
		}
		if candidate == s.Raw || strings.HasPrefix(candidate, s.Raw+"-") {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no match for %q among %d available versions",
		ErrVersionNotFound, s.Raw, len(available))
}

// SortDescending orders version strings newest-first, in place.
// Package-manager suffixes after "-" are ignored for ordering, and
// entries that do not parse as versions sort last.
func SortDescending(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		vi, vj := canonical(versions[i]), canonical(versions[j])
		switch {
		case vi == "" && vj == "":
			return false
		case vi == "":
			return false
		case vj == "":
			return true
		}
		return semver.Compare(vi, vj) > 0
	})
}

// canonical converts a package version ("1.28.0-1.1") into a semver
// string ("v1.28.0"), or "" when it cannot.
func canonical(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexByte(v, '-'); i >= 0 {
		v = v[:i]
	}
	v = "v" + v
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// Minor extracts the "major.minor" prefix of a version string, or ""
// when the string does not carry one.
func Minor(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[0] + "." + parts[1]
}

// Mismatch describes components whose minor versions disagree.
type Mismatch struct {
	// Minors maps component name to its minor version.
	Minors map[string]string
}

// String renders the mismatch for a warning log line.
func (m *Mismatch) String() string {
	pairs := make([]string, 0, len(m.Minors))
	for name, minor := range m.Minors {
		pairs = append(pairs, name+"="+minor)
	}
	sort.Strings(pairs)
	return "minor version skew across components: " + strings.Join(pairs, ", ")
}

// CheckConsistency verifies that every component shares the same minor
// version. A skew is reported as a warning value, not an error: operators
// may intentionally run skewed versions during an upgrade window.
func CheckConsistency(components map[string]string) *Mismatch {
	minors := make(map[string]string, len(components))
	distinct := make(map[string]struct{})

	for name, v := range components {
		minor := Minor(v)
		minors[name] = minor
		distinct[minor] = struct{}{}
	}

	if len(distinct) <= 1 {
		return nil
	}
	return &Mismatch{Minors: minors}
}
