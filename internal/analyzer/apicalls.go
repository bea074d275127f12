package analyzer

import (
	"regexp"
	"strings"
)

// Outbound-call patterns are best-effort text matching over handler bodies,
// not control-flow analysis. Two call shapes are recognized: a fetch-like call
// with an explicit method option, and a verb-method call object (axios style).
var (
	fetchMethodPattern = regexp.MustCompile("(?s)fetch\\(\\s*[\"'\x60]([^\"'\x60]+)[\"'\x60]\\s*,\\s*\\{.*?method\\s*:\\s*[\"']([A-Za-z]+)[\"']")
	fetchBarePattern   = regexp.MustCompile("fetch\\(\\s*[\"'\x60]([^\"'\x60]+)[\"'\x60]")
	verbMethodPattern  = regexp.MustCompile("\\b(?:axios|api|http|client)\\.(get|post|put|patch|delete)\\(\\s*[\"'\x60]([^\"'\x60]+)[\"'\x60]")
)

// ExtractAPICalls scans a handler body for outbound HTTP call patterns.
// Unmatched or irregular code yields no calls rather than an error.
func ExtractAPICalls(body string) []APICall {
	if body == "" {
		return nil
	}

	var calls []APICall
	seen := map[string]bool{}

	for _, m := range fetchMethodPattern.FindAllStringSubmatch(body, -1) {
		url, method := m[1], strings.ToUpper(m[2])
		calls = append(calls, APICall{Method: method, URL: url})
		seen[url] = true
	}

	// Bare fetch without an options object defaults to GET. Skip URLs already
	// captured with an explicit method.
	for _, m := range fetchBarePattern.FindAllStringSubmatch(body, -1) {
		if seen[m[1]] {
			continue
		}
		calls = append(calls, APICall{Method: "GET", URL: m[1]})
		seen[m[1]] = true
	}

	for _, m := range verbMethodPattern.FindAllStringSubmatch(body, -1) {
		calls = append(calls, APICall{Method: strings.ToUpper(m[1]), URL: m[2]})
	}

	return calls
}
