// Package revocation holds the token revocation list consulted by the session
// gate. Finalized sessions revoke their credential here so it cannot be replayed
// against later workflow steps.
package revocation

import (
	"fmt"
	"time"

	"kycdesk/pkg/platform/sentinel"
)

// Clock returns the current time.
type Clock func() time.Time

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}
