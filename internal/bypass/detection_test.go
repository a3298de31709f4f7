package bypass

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func hdr(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestDetectors(t *testing.T) {
	cases := []struct {
		name   string
		resp   Response
		source string
	}{
		{"plain page", Response{StatusCode: 200, Header: hdr("Server", "nginx"), Body: []byte("OK")}, ""},
		{"cloudflare header", Response{StatusCode: 403, Header: hdr("Server", "cloudflare")}, "Cloudflare"},
		{"cloudflare body", Response{StatusCode: 503, Header: hdr(), Body: []byte("... cf-turnstile ...")}, "Cloudflare"},
		{"cloudflare needs block status", Response{StatusCode: 200, Header: hdr("Server", "cloudflare")}, ""},
		{"akamai header", Response{StatusCode: 403, Header: hdr("Server", "AkamaiGHost")}, "Akamai"},
		{"akamai body", Response{StatusCode: 403, Header: hdr(), Body: []byte("Access Denied... Reference #123.456")}, "Akamai"},
		{"datadome header", Response{StatusCode: 403, Header: hdr("X-DataDome", "1")}, "DataDome"},
		{"perimeterx body", Response{StatusCode: 403, Header: hdr(), Body: []byte(`<div id="px-captcha">`)}, "PerimeterX"},
		{"google sorry redirect", Response{URL: "https://www.google.com/sorry/index?continue=x", StatusCode: 200, Header: hdr()}, "Google"},
		{"google 429", Response{URL: "https://www.google.com/search?q=x", StatusCode: 429, Header: hdr()}, "Google"},
		{"google body", Response{StatusCode: 200, Header: hdr(), Body: []byte("Our systems have detected unusual traffic from your computer")}, "Google"},
		{"ddg anomaly", Response{URL: "https://duckduckgo.com/html?q=x", StatusCode: 200, Header: hdr(), Body: []byte(`<div class="anomaly-modal">`)}, "DuckDuckGo"},
		{"ddg 202", Response{URL: "https://duckduckgo.com/html?q=x", StatusCode: 202, Header: hdr()}, "DuckDuckGo"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			detected, src := Analyze(tc.resp, DefaultDetectors())
			assert.Equal(t, tc.source != "", detected)
			assert.Equal(t, tc.source, src)
		})
	}
}

func TestAnalyze_NoDetectors(t *testing.T) {
	detected, src := Analyze(Response{StatusCode: 403, Header: hdr("Server", "cloudflare")}, nil)
	assert.False(t, detected)
	assert.Empty(t, src)
}
