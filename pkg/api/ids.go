package api

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// nextID mints a new cluster/deployment identifier. Folding a uuid.New()
// down to uint64 reuses the module's existing id-generation dependency
// instead of taking on a second scheme for the handful of entities this
// module models with a numeric key.
func nextID() uint64 {
	u := uuid.New()
	return binary.BigEndian.Uint64(u[:8])
}
