package tool

import (
	"net/url"
	"strconv"
	"strings"
)

// ValidateIPAddress accepts strict dotted-quad IPv4 only: four octets of
// digits, each 0-255, nothing else. Runs before any network call so a device
// IP can never smuggle shell metacharacters or hostnames into lower layers.
func ValidateIPAddress(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if len(part) == 0 || len(part) > 3 {
			return false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
		n, err := strconv.Atoi(part)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

// ValidateBooleanString accepts only the exact literals "true" and "false".
func ValidateBooleanString(value string) bool {
	return value == "true" || value == "false"
}

// Hosts rejected by ValidateStreamURL. 169.254.* (cloud metadata / link-local)
// is blocked by prefix below.
var blockedStreamHosts = map[string]struct{}{
	"localhost":       {},
	"127.0.0.1":       {},
	"0.0.0.0":         {},
	"::1":             {},
	"0:0:0:0:0:0:0:1": {},
}

// ValidateStreamURL accepts http/https URLs with a non-empty host that is not
// a loopback or link-local-metadata address (SSRF guard).
func ValidateStreamURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	hostname := parsed.Hostname()
	if hostname == "" {
		return false
	}
	lower := strings.ToLower(hostname)
	if _, blocked := blockedStreamHosts[lower]; blocked {
		return false
	}
	if strings.HasPrefix(lower, "169.254.") {
		return false
	}
	if strings.HasPrefix(lower, "fd00:") {
		return false
	}
	return true
}
