package dockertags

import (
	"regexp"
	"strings"
)

// MaxTags is the default number of tags kept per image.
const MaxTags = 15

// Latest is the tag that always heads the list.
const Latest = "latest"

var commitTag = regexp.MustCompile(`^[a-f0-9]{7,}$`)

// Filter drops commit-hash and sha- tags, moves "latest" to the front (adding
// it when absent) and keeps at most max tags. max <= 0 means no limit.
func Filter(names []string, max int) []string {
	tags := make([]string, 0, len(names)+1)
	tags = append(tags, Latest)
	for _, name := range names {
		if name == Latest || commitTag.MatchString(name) || strings.Contains(name, "sha-") {
			continue
		}
		tags = append(tags, name)
	}
	if max > 0 && len(tags) > max {
		tags = tags[:max]
	}
	return tags
}
