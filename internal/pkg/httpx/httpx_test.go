package httpx

import (
	"net/http"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := map[int]bool{
		200: false,
		400: false,
		403: false,
		404: false,
		408: true,
		429: true,
		500: true,
		503: true,
		600: false,
	}
	for code, want := range cases {
		if got := IsRetryableHTTPStatus(code); got != want {
			t.Errorf("IsRetryableHTTPStatus(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestRetryAfterDuration(t *testing.T) {
	withHeader := func(v string) *http.Response {
		return &http.Response{Header: http.Header{"Retry-After": []string{v}}}
	}
	cases := []struct {
		name string
		resp *http.Response
		want time.Duration
	}{
		{"nil response", nil, time.Second},
		{"seconds", withHeader("3"), 3 * time.Second},
		{"capped", withHeader("120"), 10 * time.Second},
		{"http date ignored", withHeader("Wed, 21 Oct 2015 07:28:00 GMT"), time.Second},
		{"zero ignored", withHeader("0"), time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RetryAfterDuration(tc.resp, time.Second, 10*time.Second); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
