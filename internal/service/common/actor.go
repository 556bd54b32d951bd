//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"

	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
)

// DetectActor reports the host and account the monitor runs under.
// Escalation messages and journal records carry it so several vehicles can share one chat.
func DetectActor() (*drowsiness.Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &drowsiness.Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
