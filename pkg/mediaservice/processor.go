package mediaservice

import (
	"strconv"
	"strings"
)

// NewestProcessor picks the highest dotted version among processors.
func NewestProcessor(processors []MediaProcessor) (MediaProcessor, error) {
	if len(processors) == 0 {
		return MediaProcessor{}, ErrNotFound
	}
	newest := processors[0]
	for _, p := range processors[1:] {
		if compareVersions(p.Version, newest.Version) > 0 {
			newest = p
		}
	}
	return newest, nil
}

// compareVersions compares dotted numeric versions component by component;
// missing or non-numeric components count as zero.
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < max(len(as), len(bs)); i++ {
		x, y := versionPart(as, i), versionPart(bs, i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return n
}
