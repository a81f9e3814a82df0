package ids

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a lexicographically sortable identifier suitable for storage keys.
// Entropy comes from crypto/rand because these identifiers ride inside signed
// tokens.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
