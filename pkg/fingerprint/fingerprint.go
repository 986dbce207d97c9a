// Package fingerprint derives the device fingerprint sent alongside refresh
// requests so the provider can bind a refresh credential to the device that
// obtained it.
//
// A fingerprint is "v1:" followed by the hex of the first 16 bytes of
// SHA-256 over the non-empty signals joined with "|". It is stable for a
// given installation and changes when any signal changes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"runtime"
	"strings"
	"time"
)

const (
	version = "v1:"
	hashLen = 16
)

// Len is the length of every fingerprint produced by this package.
const Len = len(version) + hashLen*2

// Device is the set of environment signals folded into a fingerprint.
type Device struct {
	InstallID string // persisted per installation
	Hostname  string
	Platform  string // GOOS/GOARCH
	TimeZone  string
	Locale    string
}

// Collect reads the local environment signals. installID is the persisted
// installation identifier.
func Collect(installID string) Device {
	host, _ := os.Hostname()
	return Device{
		InstallID: installID,
		Hostname:  host,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		TimeZone:  time.Local.String(),
		Locale:    firstNonEmpty(os.Getenv("LC_ALL"), os.Getenv("LANG")),
	}
}

// Fingerprint hashes the device signals.
func (d Device) Fingerprint() string {
	return Generate(d.InstallID, d.Hostname, d.Platform, d.TimeZone, d.Locale)
}

// Generate hashes arbitrary signals. Empty signals are skipped.
func Generate(signals ...string) string {
	kept := make([]string, 0, len(signals))
	for _, s := range signals {
		if s != "" {
			kept = append(kept, s)
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(kept, "|")))
	return version + hex.EncodeToString(sum[:hashLen])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
