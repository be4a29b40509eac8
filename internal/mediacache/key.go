package mediacache

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// NormalizeKey folds a filename or window title into the Media Cache's
// canonical lookup key: transliterated to ASCII, then Unicode-aware
// case-folded. Transliterating first means "Amélie" and "Amelie" land on
// the same key instead of merely differing in case, which plain
// strings.ToLower (or even cases.Fold alone) would not achieve.
func NormalizeKey(raw string) string {
	ascii := unidecode.Unidecode(raw)
	folded := foldCaser.String(ascii)
	return strings.TrimSpace(folded)
}
