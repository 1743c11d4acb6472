// Package ratelimit extracts a cooldown duration from an upstream HTTP
// response (headers and/or error body), and tracks per-account rate-limit
// state for the dispatcher.
package ratelimit

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const minResetMs = 1000
const bumpedResetMs = 2000

// ParseResetMs inspects resp's headers then body for a rate-limit reset hint
// and returns the number of milliseconds from now until the limit expires.
// ok is false when nothing usable was found.
func ParseResetMs(resp *http.Response, body []byte, now time.Time) (ms int64, ok bool) {
	if resp != nil {
		if ms, ok := fromHeaders(resp.Header, now); ok {
			return bump(ms), true
		}
	}
	if ms, ok := fromBody(string(body), now); ok {
		return bump(ms), true
	}
	return 0, false
}

func bump(ms int64) int64 {
	if ms < minResetMs {
		return bumpedResetMs
	}
	return ms
}

func fromHeaders(h http.Header, now time.Time) (int64, bool) {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			if secs > 0 {
				return secs * 1000, true
			}
		} else if t, err := http.ParseTime(v); err == nil {
			if d := t.Sub(now); d > 0 {
				return d.Milliseconds(), true
			}
		}
	}
	if v := strings.TrimSpace(h.Get("x-ratelimit-reset")); v != "" {
		if epochSecs, err := strconv.ParseInt(v, 10, 64); err == nil {
			d := time.Unix(epochSecs, 0).Sub(now)
			if d > 0 {
				return d.Milliseconds(), true
			}
		}
	}
	if v := strings.TrimSpace(h.Get("x-ratelimit-reset-after")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return int64(secs * 1000), true
		}
	}
	return 0, false
}

var (
	quotaResetDelayRe = regexp.MustCompile(`quotaResetDelay["':\s]+(\d+(?:\.\d+)?)\s*(ms|s)?`)
	quotaResetStampRe = regexp.MustCompile(`quotaResetTimeStamp["':\s]+"?([0-9T:.+Z-]{10,})"?`)
	retryAfterMsRe    = regexp.MustCompile(`retry[-_]after[-_]ms["':\s]+(\d+)`)
	durationRe        = regexp.MustCompile(`(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?`)
	retryAfterSecRe   = regexp.MustCompile(`retry after (\d+) seconds?`)
	resetISORe        = regexp.MustCompile(`reset[^0-9]{0,20}([0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9:.+Z-]+)`)
)

func fromBody(body string, now time.Time) (int64, bool) {
	if strings.TrimSpace(body) == "" {
		return 0, false
	}

	if m := quotaResetDelayRe.FindStringSubmatch(body); m != nil {
		n, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			unit := m[2]
			if unit == "ms" {
				return int64(n), true
			}
			return int64(n * 1000), true
		}
	}

	if m := quotaResetStampRe.FindStringSubmatch(body); m != nil {
		if t, err := time.Parse(time.RFC3339, m[1]); err == nil {
			if d := t.Sub(now); d > 0 {
				return d.Milliseconds(), true
			}
		}
	}

	if m := retryAfterMsRe.FindStringSubmatch(body); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil && n > 0 {
			return n, true
		}
	}

	if m := retryAfterSecRe.FindStringSubmatch(body); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil && n > 0 {
			return n * 1000, true
		}
	}

	if idx := strings.Index(strings.ToLower(body), "duration"); idx >= 0 {
		rest := body[idx:]
		for _, m := range durationRe.FindAllStringSubmatch(rest, -1) {
			if m[1] == "" && m[2] == "" && m[3] == "" {
				continue
			}
			var total int64
			if m[1] != "" {
				h, _ := strconv.ParseInt(m[1], 10, 64)
				total += h * 3600
			}
			if m[2] != "" {
				mi, _ := strconv.ParseInt(m[2], 10, 64)
				total += mi * 60
			}
			if m[3] != "" {
				s, _ := strconv.ParseInt(m[3], 10, 64)
				total += s
			}
			if total > 0 {
				return total * 1000, true
			}
		}
	}

	if m := resetISORe.FindStringSubmatch(body); m != nil {
		if t, err := time.Parse(time.RFC3339, m[1]); err == nil {
			if d := t.Sub(now); d > 0 {
				return d.Milliseconds(), true
			}
		}
	}

	return 0, false
}
