package billing

import (
	"encoding/json"
	"time"
)

// OracleResult is the answer from a single external billing authority.
type OracleResult struct {
	Active    bool
	Source    string
	ExpiresAt *time.Time
	// Raw is the provider payload snapshot, stored for audit only.
	Raw json.RawMessage
}

// Oracle is a read-only query adapter to an external billing authority.
// Implementations must report "identity not found" as an inactive result,
// not an error; errors are reserved for unreachable or malformed responses.
type Oracle interface {
	CheckActive(userID string) (*OracleResult, error)
}
