package utils

import "strings"

// CanonicalDomain returns a domain in the form used as a set key: trimmed of
// surrounding whitespace and lowercased. Nothing else is rewritten, so
// "example.com." and "example.com" stay distinct.
func CanonicalDomain(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// HostName is CanonicalDomain with any trailing root dots removed, for names
// read from list files and public suffix lookups.
func HostName(name string) string {
	return strings.TrimRight(CanonicalDomain(name), ".")
}

// EmailDomain extracts the canonical domain of an email address: everything
// after the last '@'. Input without an '@' yields "", which never matches a
// list entry.
func EmailDomain(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return ""
	}
	return CanonicalDomain(email[i+1:])
}

// CanonicalDomains canonicalises and de-duplicates names, dropping empties.
// First-seen order is preserved.
func CanonicalDomains(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		c := CanonicalDomain(n)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
