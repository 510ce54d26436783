package junows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID mints "<prefix>_<unix-ms>_<uuid>". The time prefix keeps ids roughly
// sortable; the random v4 suffix makes collisions negligible.
func NewID(prefix string, now time.Time) string {
	return fmt.Sprintf("%v_%v_%v", prefix, now.UnixMilli(), uuid.NewString())
}
