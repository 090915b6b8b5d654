// Generic data manipulation utilities.

package main

import (
	"net"
	"strconv"
	"strings"
)

// Parses version of format 1.2 or 1.2abc into a canonical form, e.g. 1.2.
// Returns 0 if the version cannot be parsed.
func parseVersion(vers string) int {
	var major, minor int
	var err error

	dot := strings.Index(vers, ".")
	if dot >= 0 {
		major, err = strconv.Atoi(vers[:dot])
		if err != nil {
			return 0
		}
		// Versions like 2.0-rc1 are allowed, the tail is ignored.
		minorStr := vers[dot+1:]
		for i, c := range minorStr {
			if c < '0' || c > '9' {
				minorStr = minorStr[:i]
				break
			}
		}
		minor, err = strconv.Atoi(minorStr)
		if err != nil {
			return 0
		}
	} else {
		major, err = strconv.Atoi(vers)
		if err != nil {
			return 0
		}
	}

	if major < 0 || minor < 0 || minor >= 0xff {
		return 0
	}

	return (major << 8) | minor
}

// versionToString converts a numeric version to the dotted form.
func versionToString(vers int) string {
	return strconv.Itoa(vers>>8) + "." + strconv.Itoa(vers&0xff)
}

// Check if the address is a routable public IP, i.e. suitable for logging as
// the client's address.
func isRoutableIP(addr string) bool {
	// Strip port if present.
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsGlobalUnicast() && !ip.IsPrivate() && !ip.IsLoopback()
}
