package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrAuthExpired matches any *AuthExpiredError via errors.Is.
var ErrAuthExpired = errors.New("xueqiu credential expired")

// Error codes the upstream uses when the session token is no longer valid.
var authExpiredCodes = map[string]bool{
	"400016": true,
}

// Phrases in error descriptions that ask the user to log in again.
var reloginPhrases = []string{
	"重新登录",
	"请登录",
	"login",
}

// UpstreamError is a failed upstream call. Payload holds the raw response
// body, which Classify inspects.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Payload    []byte
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("snowball %s failed", e.Operation)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if code, desc, ok := e.Fields(); ok && (code != "" || desc != "") {
		msg += fmt.Sprintf(": error_code=%s %s", code, desc)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Fields decodes error_code and error_description from the payload.
// ok is false when the payload is not a JSON object.
func (e *UpstreamError) Fields() (code, description string, ok bool) {
	if len(e.Payload) == 0 || !gjson.ValidBytes(e.Payload) {
		return "", "", false
	}
	doc := gjson.ParseBytes(e.Payload)
	if !doc.IsObject() {
		return "", "", false
	}
	return doc.Get("error_code").String(), doc.Get("error_description").String(), true
}

// AuthExpiredError reports that the upstream rejected the credential as
// expired. The operator has to refresh the configured token.
type AuthExpiredError struct {
	Code        string
	Description string
	Err         error
}

// Error implements the error interface.
func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("xueqiu credential expired (error_code %s: %s): refresh XUEQIU_TOKEN and restart the gateway",
		e.Code, e.Description)
}

// Unwrap returns the underlying upstream error.
func (e *AuthExpiredError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrAuthExpired.
func (e *AuthExpiredError) Is(target error) bool {
	return target == ErrAuthExpired
}

// Classify inspects a terminal upstream failure. An *UpstreamError whose
// payload carries a known auth-expired code or a re-login phrase becomes an
// *AuthExpiredError. Every other error, including one whose payload cannot be
// decoded, is returned unchanged.
func Classify(err error) error {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return err
	}

	code, desc, ok := ue.Fields()
	if !ok {
		return err
	}

	if authExpiredCodes[code] || mentionsRelogin(desc) {
		return &AuthExpiredError{Code: code, Description: desc, Err: err}
	}
	return err
}

func mentionsRelogin(desc string) bool {
	lower := strings.ToLower(desc)
	for _, p := range reloginPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
