package cosclient

import (
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var signatureRe = regexp.MustCompile(`q-signature=([0-9a-f]{40})`)

func TestSignRequest_Shape(t *testing.T) {
	start := time.Unix(1700000000, 0)
	end := start.Add(10 * time.Minute)

	auth := signRequest("AKIDexample", "secret", "POST", "/virus/detect", nil, nil, start, end)

	assert.True(t, strings.HasPrefix(auth, "q-sign-algorithm=sha1"))
	assert.Contains(t, auth, "q-ak=AKIDexample")
	assert.Contains(t, auth, "q-sign-time=1700000000;1700000600")
	assert.Contains(t, auth, "q-key-time=1700000000;1700000600")
	assert.Regexp(t, signatureRe, auth)
}

func TestSignRequest_Deterministic(t *testing.T) {
	start := time.Unix(1700000000, 0)
	end := start.Add(time.Minute)

	a := signRequest("ak", "sk", "GET", "/virus/detect/j1", nil, nil, start, end)
	b := signRequest("ak", "sk", "GET", "/virus/detect/j1", nil, nil, start, end)
	assert.Equal(t, a, b)
}

func TestSignRequest_SensitiveToInputs(t *testing.T) {
	start := time.Unix(1700000000, 0)
	end := start.Add(time.Minute)

	base := extractSignature(t, signRequest("ak", "sk", "GET", "/virus/detect/j1", nil, nil, start, end))

	testCases := []struct {
		name string
		auth string
	}{
		{"different key", signRequest("ak", "other", "GET", "/virus/detect/j1", nil, nil, start, end)},
		{"different method", signRequest("ak", "sk", "POST", "/virus/detect/j1", nil, nil, start, end)},
		{"different uri", signRequest("ak", "sk", "GET", "/virus/detect/j2", nil, nil, start, end)},
		{"different window", signRequest("ak", "sk", "GET", "/virus/detect/j1", nil, nil, start, end.Add(time.Second))},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotEqual(t, base, extractSignature(t, tc.auth))
		})
	}
}

func TestSignRequest_SignedParamsAndHeaders(t *testing.T) {
	start := time.Unix(1700000000, 0)
	end := start.Add(time.Minute)

	params := url.Values{"B-Param": {"2"}, "a-param": {"1"}}
	headers := url.Values{"Host": {"bucket.ci.ap-beijing.myqcloud.com"}}

	auth := signRequest("ak", "sk", "GET", "/", params, headers, start, end)
	assert.Contains(t, auth, "q-url-param-list=a-param;b-param", "param names must be lowercased and sorted")
	assert.Contains(t, auth, "q-header-list=host")
}

func extractSignature(t *testing.T, auth string) string {
	t.Helper()
	m := signatureRe.FindStringSubmatch(auth)
	require.Len(t, m, 2, "authorization must carry a 40-hex-char signature: %s", auth)
	return m[1]
}
