// Package normalize canonicalizes domains, emails and names into comparable keys.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
)

// Domain reduces a URL, host or bare domain to its lower-cased registrable
// host. It strips the scheme, user info, a leading "www.", any path, query,
// fragment or port, and trailing dots. Blank input yields "".
//
// Domain is idempotent: Domain(Domain(x)) == Domain(x).
func Domain(raw string) string {
	d := cleanDomain(raw)
	for {
		next := cleanDomain(d)
		if next == d {
			return d
		}
		d = next
	}
}

func cleanDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if d == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(d, "https://"):
		d = d[len("https://"):]
	case strings.HasPrefix(d, "http://"):
		d = d[len("http://"):]
	case strings.HasPrefix(d, "//"):
		d = d[2:]
	}

	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, "@"); i >= 0 {
		d = d[i+1:]
	}
	if i := strings.LastIndex(d, ":"); i >= 0 && isDigits(d[i+1:]) {
		d = d[:i]
	}

	d = strings.TrimRight(strings.TrimSpace(d), ".")
	d = strings.TrimPrefix(d, "www.")
	return d
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Email trims and lower-cases an email address. Values without an "@"
// are not addresses and yield "".
func Email(raw string) string {
	e := strings.ToLower(strings.TrimSpace(raw))
	e = strings.TrimPrefix(e, "mailto:")
	if !strings.Contains(e, "@") {
		return ""
	}
	return e
}

// EmailDomain returns the normalized domain part of an email address.
func EmailDomain(email string) string {
	e := Email(email)
	i := strings.LastIndex(e, "@")
	if i < 0 {
		return ""
	}
	return Domain(e[i+1:])
}

// Collapse trims s and collapses inner runs of whitespace to a single space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Fold returns the Unicode case-folded, whitespace-collapsed form of s.
// Two values are case-insensitively equal when their folds are equal.
func Fold(s string) string {
	return cases.Fold().String(Collapse(s))
}

// EqualFold reports whether a and b are equal ignoring case and
// surrounding or repeated whitespace.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Lower is the value compared against SQL LOWER(column) expressions.
func Lower(s string) string {
	return strings.ToLower(Collapse(s))
}

// SplitFullName splits "Jane Q Doe" into ("Jane", "Q Doe").
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// CompanyKey is the in-batch identity of a company: its normalized domain
// when known, otherwise its lower-cased name. Returns "" when neither is
// present.
func CompanyKey(name, domain string) string {
	if k := CompanyDomainKey(domain); k != "" {
		return k
	}
	return CompanyNameKey(name)
}

// CompanyDomainKey is the domain half of CompanyKey.
func CompanyDomainKey(domain string) string {
	if d := Domain(domain); d != "" {
		return "domain:" + d
	}
	return ""
}

// CompanyNameKey is the name half of CompanyKey. Names use Lower, the same
// form the datastore's match keys hold.
func CompanyNameKey(name string) string {
	if n := Lower(name); n != "" {
		return "name:" + n
	}
	return ""
}

// ContactKey is the in-batch identity of a contact: its normalized email
// when known, otherwise first name, last name and company name together.
// Returns "" when the contact has no usable identity.
func ContactKey(email, first, last, company string) string {
	if k := EmailKey(email); k != "" {
		return k
	}
	return NameKey(first, last, company)
}

// EmailKey is the email half of ContactKey.
func EmailKey(email string) string {
	if e := Email(email); e != "" {
		return "email:" + e
	}
	return ""
}

// NameKey is the name and company half of ContactKey. It is "" unless both
// the first name and the company name are present.
func NameKey(first, last, company string) string {
	f, c := Lower(first), Lower(company)
	if f == "" || c == "" {
		return ""
	}
	return "name:" + f + "|" + Lower(last) + "|" + c
}
