// Package dateparse normalises relaxed natural-language dates
// ("tomorrow", "next friday", "in 3 days") into the strict
// kbtypes.Date the core engine requires, at the tool-surface boundary
// only: internal/itemstore and internal/engine never accept anything
// but an already-validated YYYY-MM-DD string. Grounded on SPEC_FULL.md's
// domain stack entry for github.com/olebedev/when, used the way a CLI
// or chat-driven tool layer commonly wraps a strict core API with a
// forgiving one at its edges.
package dateparse

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/shirokuma-go/kb/internal/kbtypes"
)

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// Date resolves input as of base, accepting either a strict YYYY-MM-DD
// string (returned unchanged) or a relaxed phrase understood by
// olebedev/when ("today", "next monday", "in two weeks"). base fixes
// what "now" means, making the function deterministic for tests.
func Date(input string, base time.Time) (kbtypes.Date, error) {
	if d, err := kbtypes.ParseDate(input); err == nil {
		return d, nil
	}

	result, err := parser.Parse(input, base)
	if err != nil {
		return kbtypes.Date{}, fmt.Errorf("dateparse: %q: %w", input, err)
	}
	if result == nil {
		return kbtypes.Date{}, fmt.Errorf("dateparse: could not resolve %q", input)
	}
	return kbtypes.DateFromTime(result.Time), nil
}

// OptionalDate is Date, but an empty input is not an error: it reports
// ok=false so the caller can leave the field unset.
func OptionalDate(input string, base time.Time) (d kbtypes.Date, ok bool, err error) {
	if input == "" {
		return kbtypes.Date{}, false, nil
	}
	d, err = Date(input, base)
	return d, err == nil, err
}
