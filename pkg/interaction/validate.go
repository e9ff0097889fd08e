// pkg/interaction/validate.go
package interaction

import (
	"errors"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	usernameRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)
	domainRe   = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)
	pgIdentRe  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)
)

// ValidateNonEmpty ensures the input is not empty.
func ValidateNonEmpty(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("input cannot be empty")
	}
	return nil
}

// ValidateUsername ensures the input is a valid UNIX-style username.
func ValidateUsername(input string) error {
	if !usernameRe.MatchString(input) {
		return errors.New("invalid username (use lowercase letters, digits, underscore, dash)")
	}
	return nil
}

// ValidateEmail uses net/mail to check email format.
func ValidateEmail(input string) error {
	if _, err := mail.ParseAddress(input); err != nil {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidateURL ensures a valid absolute URL.
func ValidateURL(input string) error {
	u, err := url.Parse(input)
	if err != nil || !u.IsAbs() {
		return errors.New("invalid URL (must be absolute)")
	}
	return nil
}

// ValidateDomain accepts a fully qualified domain name.
func ValidateDomain(input string) error {
	if !domainRe.MatchString(input) {
		return errors.New("invalid domain name")
	}
	return nil
}

// ValidatePGIdentifier accepts names usable unquoted as a Postgres role or database.
func ValidatePGIdentifier(input string) error {
	if !pgIdentRe.MatchString(input) {
		return errors.New("use letters, digits and underscore, starting with a letter")
	}
	return nil
}

// ValidatePort accepts 1-65535.
func ValidatePort(input string) error {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > 65535 {
		return errors.New("port must be a number between 1 and 65535")
	}
	return nil
}

// ValidateNoShellMeta blocks shell metacharacters.
func ValidateNoShellMeta(input string) error {
	if strings.ContainsAny(input, "`$&|;<>(){}") {
		return errors.New("input contains unsafe shell characters")
	}
	return nil
}
