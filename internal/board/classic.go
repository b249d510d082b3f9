package board

import (
	_ "embed"
	"sync"
)

//go:embed maps/classic.json
var classicJSON []byte

// ClassicJSON returns the raw embedded classic board definition.
func ClassicJSON() []byte {
	return append([]byte(nil), classicJSON...)
}

// Classic returns the embedded 40-space board. The embedded data is part of
// the binary, so a validation failure is a build defect and panics.
var Classic = sync.OnceValue(func() *Board {
	b, err := Parse(classicJSON)
	if err != nil {
		panic(err)
	}
	return b
})
