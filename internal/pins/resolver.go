// Package pins translates symbolic board pin labels into emulator port/bit
// addresses and back. Everything here is immutable after init and safe for
// concurrent readers.
package pins

import (
	"sort"
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

// NormalizeLabel upper-cases and trims a label and strips a leading D in
// front of a digit run ("d13" -> "13").
func NormalizeLabel(label string) string {
	s := strings.ToUpper(strings.TrimSpace(label))
	if len(s) > 1 && s[0] == 'D' && isDigits(s[1:]) {
		return s[1:]
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Number resolves a label to a digital pin number. Resolution order:
// numeric, analog, board aliases, shared aliases.
func Number(v Variant, label string) (int, bool) {
	s := NormalizeLabel(label)
	if isDigits(s) {
		n, err := strconv.Atoi(s)
		return n, err == nil
	}
	if len(s) > 1 && s[0] == 'A' && isDigits(s[1:]) {
		n, err := strconv.Atoi(s[1:])
		return AnalogOffset + n, err == nil
	}
	if n, ok := boardAliases[v][s]; ok {
		return n, true
	}
	if n, ok := sharedAliases[s]; ok {
		return n, true
	}
	return 0, false
}

// Resolve returns the hardware address of label on board v. A false result
// means "not connected to a controllable pin" and is not an error.
func Resolve(v Variant, label string) (types.PinAddress, bool) {
	n, ok := Number(v, label)
	if !ok {
		return types.PinAddress{}, false
	}
	addr, ok := numberTables[v][n]
	return addr, ok
}

// FormatNumber renders a pin number as its canonical label.
func FormatNumber(n int) string {
	if n >= AnalogOffset && n < AnalogOffset+analogInputs {
		return "A" + strconv.Itoa(n-AnalogOffset)
	}
	return strconv.Itoa(n)
}

// Format returns the canonical label of a hardware address, or "" when the
// address has no pin on board v.
func Format(v Variant, addr types.PinAddress) string {
	for n, a := range numberTables[v] {
		if a == addr {
			return FormatNumber(n)
		}
	}
	return ""
}

// Aliases returns every alias label of v (board-specific first, then shared),
// sorted within each group.
func Aliases(v Variant) []string {
	board := sortedKeys(boardAliases[v])
	shared := sortedKeys(sharedAliases)
	out := make([]string, 0, len(board)+len(shared))
	out = append(out, board...)
	for _, s := range shared {
		if _, dup := boardAliases[v][s]; !dup {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
