package hosts

import "strings"

// known lists the mod hosting sites whose links are worth following.
var known = []string{
	"patreon.com",
	"thesimsresource.com",
	"tumblr.com",
	"snootysims.com",
	"modthesims.info",
	"curseforge.com",
	"simfileshare.net",
	"nexusmods.com",
}

// Hosts returns a copy of the trusted host list.
func Hosts() []string {
	out := make([]string, len(known))
	copy(out, known)
	return out
}

// IsTrusted reports whether any known host appears anywhere in rawURL.
// The check is a plain substring match, so a known host inside a query
// parameter also counts.
func IsTrusted(rawURL string) bool {
	for _, h := range known {
		if strings.Contains(rawURL, h) {
			return true
		}
	}
	return false
}
