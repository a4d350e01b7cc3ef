package upstream

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

const lowercase = "abcdefghijklmnopqrstuvwxyz"
const lowercaseDigits = lowercase + "0123456789"

func randomString(n int, alphabet string) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[rand.Intn(len(alphabet))])
	}
	return b.String()
}

// statsigID fabricates the anti-bot header value the web client emits.
// The backend only checks shape, so a randomized client-error string in
// one of the two observed formats passes.
func statsigID() string {
	var msg string
	if rand.Intn(2) == 0 {
		msg = fmt.Sprintf("e:TypeError: Cannot read properties of null (reading 'children['%s']')",
			randomString(5, lowercaseDigits))
	} else {
		msg = fmt.Sprintf("e:TypeError: Cannot read properties of undefined (reading '%s')",
			randomString(10, lowercase))
	}
	return base64.StdEncoding.EncodeToString([]byte(msg))
}

// browserHeaders returns the header set a real browser session sends.
func browserHeaders() map[string]string {
	return map[string]string{
		"Accept":             "*/*",
		"Accept-Language":    "en-US,en;q=0.9",
		"Content-Type":       "application/json",
		"Origin":             "https://grok.com",
		"Priority":           "u=1, i",
		"User-Agent":         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
		"Sec-Ch-Ua":          `"Not(A:Brand";v="99", "Google Chrome";v="133", "Chromium";v="133"`,
		"Sec-Ch-Ua-Mobile":   "?0",
		"Sec-Ch-Ua-Platform": `"Windows"`,
		"Sec-Fetch-Dest":     "empty",
		"Sec-Fetch-Mode":     "cors",
		"Sec-Fetch-Site":     "same-origin",
		"x-statsig-id":       statsigID(),
		"x-xai-request-id":   uuid.NewString(),
	}
}

// sessionCookie formats the credential as the backend's session cookie.
// Credential files may carry the secret with or without the cookie name.
func sessionCookie(credential string) string {
	raw := strings.TrimPrefix(credential, "sso=")
	return fmt.Sprintf("sso=%s; sso-rw=%s", raw, raw)
}
