package runner

import (
	"math/rand/v2"

	"steadydb/internal/datastore"
)

const (
	minAge = 18
	maxAge = 67
)

var names = []string{"John", "Jane", "Mike", "Sara", "Dave", "Lisa", "Tom", "Emma"}

// RandomStudent returns one row of insert parameters. The top-level math/rand/v2
// source is safe for concurrent use, so workers call this without locking.
func RandomStudent() datastore.Student {
	return datastore.Student{
		Name: randomChoice(names...),
		Age:  randomInt(minAge, maxAge),
	}
}

// randomInt returns a value in [min, max]
func randomInt(min, max int) int {
	return rand.IntN(max-min+1) + min
}

func randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.IntN(len(choices))]
}
