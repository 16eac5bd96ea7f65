package extract

import (
	"fmt"
	"math/rand/v2"
)

// Rand draws integers in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Default is safe for concurrent use.
var Default Rand = globalRand{}

// RandomIndex returns a uniform index in [0, n). n == 0 is an EmptyCollection error.
func RandomIndex(rng Rand, n int) (int, error) {
	if n <= 0 {
		return 0, &Error{Kind: EmptyCollection, Err: fmt.Errorf("collection size %d", n)}
	}
	if rng == nil {
		rng = Default
	}
	return rng.IntN(n), nil
}

// RandomPage returns a page number in [1, min(reported, limit)]. A limit <= 0
// means no cap. reported <= 0 means the search matched nothing.
func RandomPage(rng Rand, reported, limit int) (int, error) {
	if reported <= 0 {
		return 0, &Error{Kind: EmptyCollection, Err: fmt.Errorf("reported page count %d", reported)}
	}
	n := reported
	if limit > 0 {
		n = min(reported, limit)
	}
	idx, err := RandomIndex(rng, n)
	if err != nil {
		return 0, err
	}
	return idx + 1, nil
}
