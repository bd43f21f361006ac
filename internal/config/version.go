package config

import (
	"strings"

	"golang.org/x/mod/semver"
)

// CanonicalVersion turns an os-release VERSION_ID such as "9.4" or "22.04"
// into a comparable semantic version ("v9.4.0", "v22.4.0"). It returns ""
// when the input is not numeric.
func CanonicalVersion(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return ""
	}
	parts := strings.Split(v, ".")
	if len(parts) > 3 {
		return ""
	}
	for i, part := range parts {
		if part == "" || strings.Trim(part, "0123456789") != "" {
			return ""
		}
		part = strings.TrimLeft(part, "0")
		if part == "" {
			part = "0"
		}
		parts[i] = part
	}
	canonical := semver.Canonical("v" + strings.Join(parts, "."))
	return canonical
}

// VersionAtLeast reports whether have >= least. Unparseable versions never
// satisfy the minimum.
func VersionAtLeast(have, least string) bool {
	h, l := CanonicalVersion(have), CanonicalVersion(least)
	if h == "" || l == "" {
		return false
	}
	return semver.Compare(h, l) >= 0
}
