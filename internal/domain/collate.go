package domain

import (
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collators carry internal buffers and are not safe for concurrent use, so
// every sort builds its own.

func feederCollator() *collate.Collator {
	return collate.New(language.Und)
}

func stationCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase)
}

// compareText orders by the collator and falls back to byte order so that
// strings the collator treats as equal still have a fixed position.
func compareText(c *collate.Collator, a, b string) int {
	if r := c.CompareString(a, b); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}
