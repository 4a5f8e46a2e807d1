// Package pathkey implements the PathNormalizer component: it canonicalizes
// the remote service's several path flavors to a single canonical form and
// provides case-insensitive, case-preserving lookup semantics.
package pathkey

import "strings"

// Key is a canonical remote path: starts with "/", carries no service
// prefix, has no trailing "/", and compares case-insensitively while
// preserving the original casing for display. The zero Key ("") is never
// valid; Canonical always returns at least "/".
type Key struct {
	normalized string // lower-cased, used for comparison and map keys
	display    string // original casing, used for Display
}

// servicePrefixes lists the path flavors a hosted drive service may hand
// back for the same logical path. Longest-prefix-first so "/drives/{id}/root:"
// is stripped before the bare "/drive/root:" form could partially match.
var servicePrefixes = []string{
	"/drives/",     // "/drives/{id}/root:/X" — stripped specially below (variable segment)
	"/drive/root:", // "/drive/root:/X"
}

// Canonical transforms any of the service's path flavors to a canonical
// Key. It never fails: inputs it doesn't recognize pass through unchanged
// except for prefix stripping and slash normalization.
func Canonical(raw string) Key {
	p := stripServicePrefix(raw)
	p = normalizeSlashes(p)

	return Key{
		normalized: strings.ToLower(p),
		display:    p,
	}
}

// stripServicePrefix removes known remote-service path-flavor prefixes,
// leaving a bare "/"-rooted path. Handles:
//
//	"/drive/root:/X"       -> "/X"
//	"/drives/{id}/root:/X" -> "/X"
//	"/X"                   -> "/X" (already bare)
func stripServicePrefix(raw string) string {
	if strings.HasPrefix(raw, "/drives/") {
		rest := raw[len("/drives/"):]
		if idx := strings.Index(rest, "/root:"); idx >= 0 {
			return rest[idx+len("/root:"):]
		}

		return raw
	}

	if strings.HasPrefix(raw, "/drive/root:") {
		return raw[len("/drive/root:"):]
	}

	return raw
}

// normalizeSlashes ensures the path starts with exactly one "/", has no
// trailing "/" (unless it is the root itself), and collapses any accidental
// repeated slashes left over from prefix-stripping.
func normalizeSlashes(p string) string {
	if p == "" {
		return "/"
	}

	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}

	return p
}

// Display returns the case-preserved canonical path for presentation.
func (k Key) Display() string {
	if k.display == "" {
		return "/"
	}

	return k.display
}

// String satisfies fmt.Stringer with the display form.
func (k Key) String() string {
	return k.Display()
}

// Equal reports whether two Keys refer to the same path under
// case-insensitive comparison.
func (k Key) Equal(other Key) bool {
	return k.normalized == other.normalized
}

// Comparable returns the normalized form suitable for use as a map key.
// Two Keys for paths differing only in case produce the same Comparable
// value, implementing "case-insensitive compare, case-preserving storage."
func (k Key) Comparable() string {
	return k.normalized
}

// Join appends a relative child segment to a folder Key, canonicalizing
// the result. Used when materializing a LocalScanner-discovered file path
// under its selected remote folder root.
func Join(folder Key, relPath string) Key {
	base := folder.Display()
	if base == "/" {
		return Canonical("/" + relPath)
	}

	return Canonical(base + "/" + relPath)
}

// IsRoot reports whether the Key refers to the selection root itself.
func (k Key) IsRoot() bool {
	return k.normalized == "/" || k.normalized == ""
}

// Segments splits a Key into its path components, e.g. "/A/B/c.txt" ->
// ["A", "B", "c.txt"]. The root Key yields an empty slice.
func Segments(k Key) []string {
	trimmed := strings.Trim(k.Display(), "/")
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "/")
}

// EqualSegment compares a single path segment (e.g. a file or folder
// name) case-insensitively, matching the comparison semantics of Equal.
func EqualSegment(a, b string) bool {
	return strings.EqualFold(a, b)
}
