// Package netsuite is the gateway to the external enterprise system. Calls go
// through OAuth 1.0a signed restlet endpoints; failures are classified into
// unavailable (transport, timeout, 5xx) versus rejected (4xx, business error)
// so callers can decide between retrying and giving up.
package netsuite

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/google/uuid"
)

// signer produces the OAuth 1.0a Authorization header with HMAC-SHA256, the
// scheme the restlet endpoints require. Token-based, no request token dance.
type signer struct {
	cfg config.NetSuiteConfig
}

// authorizationHeader signs one request. Query parameters participate in the
// signature base string alongside the oauth_* parameters.
func (s signer) authorizationHeader(method string, endpoint string, query url.Values, now time.Time) string {
	oauthParams := map[string]string{
		"oauth_consumer_key":     s.cfg.ConsumerKey,
		"oauth_token":            s.cfg.TokenId,
		"oauth_signature_method": "HMAC-SHA256",
		"oauth_timestamp":        fmt.Sprint(now.Unix()),
		"oauth_nonce":            strings.ReplaceAll(uuid.NewString(), "-", ""),
		"oauth_version":          "1.0",
	}

	params := make(map[string]string, len(oauthParams)+len(query))
	for k, v := range oauthParams {
		params[k] = v
	}
	for k := range query {
		params[k] = query.Get(k)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(params[k]))
	}
	paramString := strings.Join(pairs, "&")

	base := strings.ToUpper(method) + "&" + percentEncode(endpoint) + "&" + percentEncode(paramString)
	signingKey := percentEncode(s.cfg.ConsumerSecret) + "&" + percentEncode(s.cfg.TokenSecret)

	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(base))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	headerParts := []string{`OAuth realm="` + s.cfg.AccountId + `"`}
	for _, k := range []string{"oauth_consumer_key", "oauth_token", "oauth_signature_method", "oauth_timestamp", "oauth_nonce", "oauth_version"} {
		headerParts = append(headerParts, k+`="`+percentEncode(oauthParams[k])+`"`)
	}
	headerParts = append(headerParts, `oauth_signature="`+percentEncode(signature)+`"`)
	return strings.Join(headerParts, ", ")
}

// percentEncode follows RFC 5849 section 3.6: unreserved characters pass
// through, everything else is %XX with uppercase hex. url.QueryEscape is not
// compatible (space becomes '+').
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
