package docstore

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier like "doc_1f9a4c...". Prefixes keep
// IDs self-describing in logs and foreign keys.
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
