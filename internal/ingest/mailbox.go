package ingest

import (
	"bufio"
	"io"
	"net/mail"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leadimport/internal/model"
	"github.com/sells-group/leadimport/internal/normalize"
)

// MailHeader holds the address headers of one message.
type MailHeader struct {
	From string `json:"from"`
	To   string `json:"to"`
	Cc   string `json:"cc"`
}

// ScanOptions controls which correspondents become leads.
type ScanOptions struct {
	// Owner is the mailbox owner's address; it is never imported.
	Owner string
	// IgnoreDomains drops correspondents at these domains, such as the
	// owner's own company.
	IgnoreDomains []string
	// FreeMailDomains are consumer providers that do not identify a company.
	// Empty uses DefaultFreeMailDomains.
	FreeMailDomains []string
}

// DefaultFreeMailDomains lists common consumer mail providers.
var DefaultFreeMailDomains = []string{
	"gmail.com", "googlemail.com", "yahoo.com", "hotmail.com", "outlook.com",
	"live.com", "msn.com", "aol.com", "icloud.com", "me.com", "mac.com",
	"proton.me", "protonmail.com", "gmx.com", "gmx.de", "mail.com", "yandex.com",
	"zoho.com", "fastmail.com",
}

var roleLocalParts = []string{
	"noreply", "no-reply", "no_reply", "donotreply", "do-not-reply", "mailer-daemon",
	"postmaster", "bounce", "bounces", "notifications", "notification", "newsletter",
}

// ScanHeaders extracts correspondents from From, To and Cc headers in order
// of first appearance. Repeated addresses collapse into the first
// occurrence.
func ScanHeaders(headers []MailHeader, opts ScanOptions) []model.ImportRow {
	owner := normalize.Email(opts.Owner)
	ignored := domainSet(opts.IgnoreDomains)
	free := domainSet(opts.FreeMailDomains)
	if len(free) == 0 {
		free = domainSet(DefaultFreeMailDomains)
	}

	seen := make(map[string]bool)
	var rows []model.ImportRow
	for _, h := range headers {
		for _, field := range []string{h.From, h.To, h.Cc} {
			for _, addr := range parseAddresses(field) {
				email := normalize.Email(addr.Address)
				if email == "" || email == owner || seen[email] || isRoleAddress(email) {
					continue
				}
				domain := normalize.EmailDomain(email)
				if ignored[domain] {
					continue
				}
				seen[email] = true

				name := strings.Trim(addr.Name, `"' `)
				if name == "" || normalize.Email(name) != "" {
					name = nameFromLocalPart(email)
				}
				row := model.ImportRow{
					Contact: model.ContactInput{
						FullName:     name,
						EmailAddress: email,
					},
				}
				if !free[domain] {
					row.Company.Domain = domain
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// ReadMbox reads the address headers of every message in an mbox stream.
func ReadMbox(r io.Reader) ([]MailHeader, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		out []MailHeader
		msg strings.Builder
	)
	flush := func() error {
		if msg.Len() == 0 {
			return nil
		}
		defer msg.Reset()
		m, err := mail.ReadMessage(strings.NewReader(msg.String()))
		if err != nil {
			return eris.Wrap(err, "ingest: parse message headers")
		}
		out = append(out, MailHeader{
			From: m.Header.Get("From"),
			To:   m.Header.Get("To"),
			Cc:   m.Header.Get("Cc"),
		})
		return nil
	}

	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "From ") {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		msg.WriteString(line)
		msg.WriteString("\r\n")
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "ingest: read mbox")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseAddresses parses an address list, falling back to one address at a
// time when the list as a whole is malformed.
func parseAddresses(field string) []*mail.Address {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	if list, err := mail.ParseAddressList(field); err == nil {
		return list
	}
	var out []*mail.Address
	for _, part := range strings.Split(field, ",") {
		if a, err := mail.ParseAddress(strings.TrimSpace(part)); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// nameFromLocalPart guesses "Jane Doe" from "jane.doe@acme.com". Local parts
// without a separator yield "".
func nameFromLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local, _, _ = strings.Cut(local, "+")
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(parts) < 2 {
		return ""
	}
	for _, p := range parts {
		if strings.ContainsAny(p, "0123456789") {
			return ""
		}
	}
	return cases.Title(language.Und).String(strings.Join(parts, " "))
}

func isRoleAddress(email string) bool {
	local, _, _ := strings.Cut(email, "@")
	for _, p := range roleLocalParts {
		if local == p || strings.HasPrefix(local, p+"+") {
			return true
		}
	}
	return false
}

func domainSet(domains []string) map[string]bool {
	out := make(map[string]bool, len(domains))
	for _, d := range domains {
		if d = normalize.Domain(d); d != "" {
			out[d] = true
		}
	}
	return out
}
