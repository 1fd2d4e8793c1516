package captcha

import "time"

// Field is the form field CAPTCHA failures are reported under.
const Field = "captcha"

// Challenge is a submitted challenge-response pair: Key is the opaque token
// the client received with the prompt (captcha_0), Response is what the
// human typed (captcha_1).
type Challenge struct {
	Key      string
	Response string
}

// IsZero reports whether nothing was submitted.
func (c Challenge) IsZero() bool {
	return c.Key == "" && c.Response == ""
}

// Issued is a freshly minted challenge handed to a client. The answer never
// leaves the service.
type Issued struct {
	Key       string    `json:"key"`
	Prompt    string    `json:"prompt"`
	ExpiresAt time.Time `json:"expires_at"`
}
