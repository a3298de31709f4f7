package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of an HTTP exchange the detectors look at.
type Response struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a bot protection mechanism challenged or blocked
// the request, and names it.
type Detector func(r Response) (detected bool, source string)

// DefaultDetectors returns the CDN detectors followed by the search engine
// interstitial detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
		detectGoogleSorry,
		detectDuckDuckGoAnomaly,
	}
}

// Analyze returns the first detection among detectors.
func Analyze(r Response, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(r); detected {
			return true, source
		}
	}
	return false, ""
}

func server(r Response) string {
	return strings.ToLower(r.Header.Get("Server"))
}

func detectCloudflare(r Response) (bool, string) {
	if r.StatusCode != http.StatusForbidden && r.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(server(r), "cloudflare") {
		return true, "Cloudflare"
	}
	for _, sig := range []string{"cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare"} {
		if bytes.Contains(r.Body, []byte(sig)) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

func detectAkamai(r Response) (bool, string) {
	if r.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(r), "akamai") {
		return true, "Akamai"
	}
	// Generic "Reference #" block page
	if bytes.Contains(r.Body, []byte("Reference #")) && bytes.Contains(r.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(r Response) (bool, string) {
	if r.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(r), "datadome") ||
		r.Header.Get("X-DataDome") != "" || r.Header.Get("X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bytes.Contains(r.Body, []byte("geo.captcha-delivery.com")) || bytes.Contains(r.Body, []byte("datadome")) {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(r Response) (bool, string) {
	if r.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if r.Header.Get("X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	for _, sig := range []string{"client.perimeterx.net", "px-captcha", "_pxBlock"} {
		if bytes.Contains(r.Body, []byte(sig)) {
			return true, "PerimeterX"
		}
	}
	return false, ""
}

// detectGoogleSorry spots the "unusual traffic" interstitial Google serves to
// scripted clients, reached via a redirect to /sorry/.
func detectGoogleSorry(r Response) (bool, string) {
	if strings.Contains(r.URL, "google.") && strings.Contains(r.URL, "/sorry/") {
		return true, "Google"
	}
	if r.StatusCode == http.StatusTooManyRequests && strings.Contains(r.URL, "google.") {
		return true, "Google"
	}
	if bytes.Contains(r.Body, []byte("Our systems have detected unusual traffic")) {
		return true, "Google"
	}
	return false, ""
}

// detectDuckDuckGoAnomaly spots the bot check the html endpoint returns in
// place of results.
func detectDuckDuckGoAnomaly(r Response) (bool, string) {
	if bytes.Contains(r.Body, []byte("anomaly-modal")) {
		return true, "DuckDuckGo"
	}
	if strings.Contains(r.URL, "duckduckgo.com") && r.StatusCode == http.StatusAccepted {
		return true, "DuckDuckGo"
	}
	return false, ""
}
