package respond

import "regexp"

var (
	// Credentials embedded in connection strings (postgres://, amqp://, redis://).
	dsnPasswordPattern = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)

	// Provider API keys passed as bearer tokens.
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]+`)
)

// Sanitize masks credentials that infrastructure errors tend to carry, such
// as DSN passwords from a failed connection attempt.
func Sanitize(err error) string {
	if err == nil {
		return ""
	}
	msg := dsnPasswordPattern.ReplaceAllString(err.Error(), "://$1:****@")
	msg = bearerPattern.ReplaceAllString(msg, "Bearer ****")
	return msg
}
