package compat

import (
	"regexp"
	"strings"
)

var (
	// $(inputs.output) and {inputs.output}
	inputRefPattern = regexp.MustCompile(`\$\(inputs\.[^)]+\)|\{inputs\.[^}]+\}`)
	afniSuffix      = regexp.MustCompile(`(\+(?:orig|tlrc)\.(?:HEAD|BRIK(?:\.gz)?))`)
	niftiWildcard   = regexp.MustCompile(`\.nii\*|\*\.nii`)
	anyExtension    = regexp.MustCompile(`\*\.\*$`)
	wildcardSuffix  = regexp.MustCompile(`(\.[a-zA-Z0-9]+)\*?$`)
	compoundSuffix  = regexp.MustCompile(`(\.[a-zA-Z0-9]+\.[a-zA-Z0-9]+)$`)
	singleSuffix    = regexp.MustCompile(`(\.[a-zA-Z0-9]+)$`)
)

// ParseExtensionsFromGlob extracts the file extensions a set of CWL glob
// patterns may produce. The result is deduplicated in first-seen order.
// Patterns that reveal nothing contribute nothing.
func ParseExtensionsFromGlob(globs []string) []string {
	seen := make(map[string]bool)
	exts := make([]string, 0, len(globs))
	add := func(ext string) {
		if !seen[ext] {
			seen[ext] = true
			exts = append(exts, ext)
		}
	}

	for _, pattern := range globs {
		clean := inputRefPattern.ReplaceAllString(pattern, "")

		if strings.Contains(clean, "+orig") || strings.Contains(clean, "+tlrc") {
			if m := afniSuffix.FindStringSubmatch(clean); m != nil {
				add(m[1])
				continue
			}
			if strings.Contains(clean, "+orig") {
				add("+orig.HEAD")
			}
			if strings.Contains(clean, "+tlrc") {
				add("+tlrc.HEAD")
			}
			continue
		}

		if strings.Contains(clean, "*") {
			switch {
			case niftiWildcard.MatchString(clean):
				add(".nii")
				add(".nii.gz")
			case anyExtension.MatchString(clean):
			default:
				if m := wildcardSuffix.FindStringSubmatch(clean); m != nil {
					add(m[1])
				}
			}
			continue
		}

		if m := compoundSuffix.FindStringSubmatch(clean); m != nil {
			add(m[1])
			continue
		}
		if m := singleSuffix.FindStringSubmatch(clean); m != nil {
			add(m[1])
		}
	}
	return exts
}
