package models

import (
	"strconv"
	"strings"
)

// AllClasses is the class selector value that matches every class.
const AllClasses = "All Classes"

const classPrefix = "Class "

var ordinalSuffixes = []string{"st", "nd", "rd", "th"}

// NormalizeClassName maps free-form class input onto the "Class N" naming used across
// collections: "1st" and "1" both become "Class 1"; other names gain the prefix.
func NormalizeClassName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(name), strings.ToLower(classPrefix)) {
		return classPrefix + strings.TrimSpace(name[len(classPrefix):])
	}
	lower := strings.ToLower(name)
	for _, suffix := range ordinalSuffixes {
		if strings.HasSuffix(lower, suffix) {
			if n, err := strconv.Atoi(lower[:len(lower)-len(suffix)]); err == nil {
				return classPrefix + strconv.Itoa(n)
			}
		}
	}
	return classPrefix + name
}

// MatchesClass reports whether className satisfies the selector. An empty selector and
// AllClasses match everything; anything else must match exactly.
func MatchesClass(selector, className string) bool {
	if selector == "" || selector == AllClasses {
		return true
	}
	return selector == className
}
