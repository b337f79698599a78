// Package version negotiates the challenge-protocol settings version between
// a client and the gateway. The accepted range is a configured default plus
// any additionally-accepted versions rolled out via flights; negotiation runs
// before any authentication side effect so a version-incompatible client
// never partially advances a challenge.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/altairpay/authgate/policy"
)

// Config describes the accepted version range. Versions are spelled "V<n>".
type Config struct {
	// Minimum is the lowest version the gateway still accepts.
	Minimum string
	// Default is the version handed to clients that report nothing.
	Default string
	// Additional lists versions accepted when the matching
	// SettingsVersionV<n> flight is enabled for the request.
	Additional []string
}

// Mismatch reports a failed negotiation and the version the client should
// move to.
type Mismatch struct {
	Reported string
	Target   string
}

// Number extracts the numeric part of a "V<n>" version string.
func Number(v string) (int, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "V")
	v = strings.TrimPrefix(v, "v")
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Negotiate computes the target version for the caller's reported version
// under the given config and flight snapshot.
//
// The rule: below the minimum accepted, the target is the minimum; above the
// highest currently rolled-out version, the target is that maximum; inside
// the accepted set there is no mismatch. tryCount > 1 suppresses a mismatch
// so a client that failed to download the target settings can still proceed.
func Negotiate(cfg Config, flights policy.Snapshot, reported string, tryCount int) *Mismatch {
	min, ok := Number(cfg.Minimum)
	if !ok {
		min, _ = Number(cfg.Default)
	}
	max, _ := Number(Latest(cfg, flights))
	if max < min {
		max = min
	}

	if tryCount > 1 {
		return nil
	}
	if reported == "" {
		reported = cfg.Default
	}
	n, ok := Number(reported)
	if !ok {
		return &Mismatch{Reported: reported, Target: format(max)}
	}
	if n < min {
		return &Mismatch{Reported: reported, Target: format(min)}
	}
	if n > max {
		return &Mismatch{Reported: reported, Target: format(max)}
	}
	return nil
}

// Latest returns the highest version currently rolled out for the snapshot.
// An additionally-accepted version is rolled out when the matching
// SettingsVersionV<n> flight is enabled.
func Latest(cfg Config, flights policy.Snapshot) string {
	rolledOut := map[int]bool{}
	for _, raw := range flights.WithPrefix(policy.SettingsVersionPrefix) {
		if n, err := strconv.Atoi(raw); err == nil {
			rolledOut[n] = true
		}
	}

	max, _ := Number(cfg.Default)
	for _, v := range cfg.Additional {
		n, ok := Number(v)
		if ok && rolledOut[n] && n > max {
			max = n
		}
	}
	return format(max)
}

func format(n int) string {
	return fmt.Sprintf("V%d", n)
}
