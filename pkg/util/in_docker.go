package util

import "os"

var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

// IsRunningInDocker reports whether the process runs inside a Docker or
// Podman container
func IsRunningInDocker() bool {
	for _, p := range containerMarkers {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}

	return false
}
