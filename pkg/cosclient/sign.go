package cosclient

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is the algorithm mandated by the COS signature scheme
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// signRequest computes the COS "q-sign-algorithm=sha1" Authorization
// header for one request. uri is the path part of the request, params
// and headers are the signed query parameters and headers (both may be
// nil). The signature is valid between start and end.
func signRequest(secretID, secretKey, method, uri string, params, headers url.Values, start, end time.Time) string {
	keyTime := fmt.Sprintf("%d;%d", start.Unix(), end.Unix())
	signKey := hmacSHA1Hex(secretKey, keyTime)

	paramList, paramString := canonicalize(params)
	headerList, headerString := canonicalize(headers)

	httpString := strings.ToLower(method) + "\n" + uri + "\n" + paramString + "\n" + headerString + "\n"
	stringToSign := "sha1\n" + keyTime + "\n" + sha1Hex(httpString) + "\n"
	signature := hmacSHA1Hex(signKey, stringToSign)

	return strings.Join([]string{
		"q-sign-algorithm=sha1",
		"q-ak=" + secretID,
		"q-sign-time=" + keyTime,
		"q-key-time=" + keyTime,
		"q-header-list=" + headerList,
		"q-url-param-list=" + paramList,
		"q-signature=" + signature,
	}, "&")
}

// canonicalize lowercases and sorts the keys, returning the signed key
// list ("a;b") and the canonical "a=encoded&b=encoded" string.
func canonicalize(values url.Values) (list, canonical string) {
	if len(values) == 0 {
		return "", ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, strings.ToLower(k))
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := values.Get(k)
		if v == "" {
			// url.Values keys are case-sensitive, retry the original casing
			for orig := range values {
				if strings.ToLower(orig) == k {
					v = values.Get(orig)
					break
				}
			}
		}
		pairs = append(pairs, k+"="+url.QueryEscape(v))
	}
	return strings.Join(keys, ";"), strings.Join(pairs, "&")
}

func hmacSHA1Hex(key, msg string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(msg))
	return hex.EncodeToString(h.Sum(nil))
}

func sha1Hex(msg string) string {
	h := sha1.Sum([]byte(msg)) //nolint:gosec // required by the COS signature scheme
	return hex.EncodeToString(h[:])
}
