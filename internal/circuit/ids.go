package circuit

import (
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenCircuitCore/internal/components"
)

// NextComponentID returns "<kind>-<n>" with n one above the highest number
// already used for that kind in existing.
func NextComponentID(kind components.Kind, existing []string) string {
	prefix := string(kind) + "-"
	highest := 0
	for _, id := range existing {
		rest, ok := strings.CutPrefix(id, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > highest {
			highest = n
		}
	}
	return prefix + strconv.Itoa(highest+1)
}
