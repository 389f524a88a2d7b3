// Copyright 2025 Green Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sigv4 implements AWS Signature Version 4 request signing: the
// canonical request, the string to sign, the derived signing key, and the
// Authorization header carrying the result.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/green-labs/aws-api/internal/credentials"
	"github.com/green-labs/aws-api/internal/transport"
)

const (
	algorithm  = "AWS4-HMAC-SHA256"
	timeFormat = "20060102T150405Z"
	dateFormat = "20060102"
)

// Headers never included in the signature: Authorization carries it, and
// proxies rewrite the rest in flight.
var unsignableHeaders = map[string]bool{
	"authorization":   true,
	"user-agent":      true,
	"x-amzn-trace-id": true,
	"expect":          true,
}

// Sign computes the SigV4 signature over the request and sets the Host,
// X-Amz-Date, optional X-Amz-Security-Token, and Authorization headers. The
// request must already carry its final method, host, path, query, headers,
// and body; any header present when Sign runs is covered by the signature.
func Sign(req *transport.Request, creds credentials.Value, region, service string, now time.Time) error {
	if !creds.Valid() {
		return errors.New("sigv4: missing access key or secret key")
	}
	if req.Host == "" {
		return errors.New("sigv4: request host not set")
	}

	now = now.UTC()
	amzDate := now.Format(timeFormat)
	dateStamp := now.Format(dateFormat)

	req.Headers.Set("Host", req.HostPort())
	req.Headers.Set("X-Amz-Date", amzDate)
	if creds.SessionToken != "" {
		req.Headers.Set("X-Amz-Security-Token", creds.SessionToken)
	}
	if len(req.Body) > 0 {
		req.Headers.Set("X-Amz-Content-Sha256", hashHex(req.Body))
	}

	canonicalHeaders, signedHeaders := canonicalizeHeaders(req)
	canonical := strings.Join([]string{
		req.Method,
		canonicalURI(req.Path),
		canonicalQuery(req),
		canonicalHeaders,
		signedHeaders,
		hashHex(req.Body),
	}, "\n")

	scope := strings.Join([]string{dateStamp, region, service, "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		hashHex([]byte(canonical)),
	}, "\n")

	key := signingKey(creds.SecretAccessKey, dateStamp, region, service)
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	req.Headers.Set("Authorization", strings.Join([]string{
		algorithm + " Credential=" + creds.AccessKeyID + "/" + scope,
		"SignedHeaders=" + signedHeaders,
		"Signature=" + signature,
	}, ", "))
	return nil
}

// signingKey derives the per-day signing key:
// HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), service), "aws4_request").
func signingKey(secret, dateStamp, region, service string) []byte {
	key := hmacSHA256([]byte("AWS4"+secret), dateStamp)
	key = hmacSHA256(key, region)
	key = hmacSHA256(key, service)
	return hmacSHA256(key, "aws4_request")
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// canonicalURI encodes each path segment. Segments are encoded even if the
// path was already escaped when built, per the double-encoding rule for
// non-S3 services.
func canonicalURI(path string) string {
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = uriEncode(seg, false)
	}
	out := strings.Join(segments, "/")
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}

// canonicalQuery sorts parameters by key then value and encodes both with
// the strict SigV4 rules (space is %20, never +).
func canonicalQuery(req *transport.Request) string {
	type pair struct{ key, value string }
	var pairs []pair
	for key, values := range req.Query {
		for _, value := range values {
			pairs = append(pairs, pair{uriEncode(key, true), uriEncode(value, true)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + "=" + p.value
	}
	return strings.Join(parts, "&")
}

// canonicalizeHeaders lowercases names, trims and collapses value
// whitespace, and returns the canonical header block plus the sorted
// signed-header list.
func canonicalizeHeaders(req *transport.Request) (string, string) {
	byName := map[string][]string{}
	var names []string
	for name, values := range req.Headers {
		lower := strings.ToLower(name)
		if unsignableHeaders[lower] {
			continue
		}
		if _, seen := byName[lower]; !seen {
			names = append(names, lower)
		}
		for _, v := range values {
			byName[lower] = append(byName[lower], collapseSpaces(strings.TrimSpace(v)))
		}
	}
	sort.Strings(names)

	var block strings.Builder
	for _, name := range names {
		block.WriteString(name)
		block.WriteByte(':')
		block.WriteString(strings.Join(byName[name], ","))
		block.WriteByte('\n')
	}
	return block.String(), strings.Join(names, ";")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// uriEncode percent-encodes per RFC 3986 with the SigV4 unreserved set.
// encodeSlash distinguishes query components from path segments.
func uriEncode(s string, encodeSlash bool) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			out.WriteByte(c)
		case c == '/' && !encodeSlash:
			out.WriteByte(c)
		default:
			const hex = "0123456789ABCDEF"
			out.WriteByte('%')
			out.WriteByte(hex[c>>4])
			out.WriteByte(hex[c&0xF])
		}
	}
	return out.String()
}
