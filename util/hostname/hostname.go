package hostname

import (
	"net"
	"os"
	"regexp"
	"strings"
)

const (
	// https://tools.ietf.org/html/rfc1123#section-2
	regexStringRFC1123Label = `^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?$`
	maxLen                  = 253
)

var (
	regexRFC1123Label = regexp.MustCompile(regexStringRFC1123Label)
	regexNumeric      = regexp.MustCompile(`^[0-9]+$`)
)

// localNames are the host values always executed in the local shell.
var localNames = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// IsValid returns true if s is a RFC1123 hostname. Labels may start with a
// digit, but the last label can not be all-numeric, so a mistyped ip
// address is not mistaken for a hostname.
func IsValid(s string) bool {
	if s == "" || len(s) > maxLen {
		return false
	}
	labels := strings.Split(s, ".")
	for _, label := range labels {
		if !regexRFC1123Label.MatchString(label) {
			return false
		}
	}
	return !regexNumeric.MatchString(labels[len(labels)-1])
}

// IsValidHost returns true if s is either a RFC1123 hostname or an ip address.
func IsValidHost(s string) bool {
	if net.ParseIP(s) != nil {
		return true
	}
	return IsValid(s)
}

// IsLocal returns true if the host s designates the node running this
// process.
func IsLocal(s string) bool {
	s = strings.ToLower(s)
	if localNames[s] {
		return true
	}
	h, err := os.Hostname()
	if err != nil {
		return false
	}
	h = strings.ToLower(h)
	if s == h {
		return true
	}
	// short name of the local fqdn
	if short, _, found := strings.Cut(h, "."); found && s == short {
		return true
	}
	return false
}
