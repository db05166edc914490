// Package naming generates entity ids and sequential display names.
package naming

import (
	"fmt"
	"math"
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	FlowPrefix      = "Custom Flow"
	WorkspacePrefix = "Workspace"
)

// NewID returns a new opaque, lexically sortable id
func NewID() string {
	return ulid.Make().String()
}

// Suffix reads the integer that follows prefix in name. It accepts leading
// whitespace and a sign, stops at the first non-digit and returns 0 when no
// digits follow.
func Suffix(name, prefix string) int {
	rest := strings.TrimLeft(strings.TrimPrefix(name, prefix), " \t\n\r")

	sign := 1
	if rest != "" && (rest[0] == '-' || rest[0] == '+') {
		if rest[0] == '-' {
			sign = -1
		}
		rest = rest[1:]
	}

	n, digits := 0, 0
	for _, r := range rest {
		if r < '0' || r > '9' {
			break
		}
		d := int(r - '0')
		if n > (math.MaxInt-d)/10 {
			n = math.MaxInt
		} else {
			n = n*10 + d
		}
		digits++
	}
	if digits == 0 {
		return 0
	}
	return sign * n
}

// Next returns "{prefix} {max+1}" where max is the largest suffix among names
// starting with prefix. Suffixes saturate at math.MaxInt; once that is taken
// the smallest unused positive suffix is returned instead.
func Next(prefix string, names []string) string {
	largest := 0
	used := make(map[int]bool)
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n := Suffix(name, prefix)
		used[n] = true
		if n > largest {
			largest = n
		}
	}
	if largest < math.MaxInt {
		return fmt.Sprintf("%s %d", prefix, largest+1)
	}

	n := 1
	for used[n] {
		n++
	}
	return fmt.Sprintf("%s %d", prefix, n)
}
