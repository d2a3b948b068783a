package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadimport/internal/model"
)

// ExtensionLead is a lead captured by the browser extension from a profile
// page.
type ExtensionLead struct {
	FirstName  string           `json:"first_name"`
	LastName   string           `json:"last_name"`
	FullName   string           `json:"full_name"`
	Email      string           `json:"email"`
	Title      string           `json:"title"`
	ProfileURL string           `json:"profile_url"`
	Phone      string           `json:"phone"`
	Location   string           `json:"location"`
	Company    ExtensionCompany `json:"company"`
}

// ExtensionCompany is the employer shown on a captured profile.
type ExtensionCompany struct {
	Name        string `json:"name"`
	Website     string `json:"website"`
	Domain      string `json:"domain"`
	Industry    string `json:"industry"`
	LinkedInURL string `json:"linkedin_url"`
}

// Row converts the lead to an import row.
func (l ExtensionLead) Row() model.ImportRow {
	return model.ImportRow{
		Contact: model.ContactInput{
			FirstName:    l.FirstName,
			LastName:     l.LastName,
			FullName:     l.FullName,
			EmailAddress: l.Email,
			JobTitle:     l.Title,
			LinkedInURL:  l.ProfileURL,
			PhoneNumber:  l.Phone,
			Location:     l.Location,
		},
		Company: model.CompanyInput{
			Name:        l.Company.Name,
			Domain:      l.Company.Domain,
			Website:     l.Company.Website,
			Industry:    l.Company.Industry,
			LinkedInURL: l.Company.LinkedInURL,
		},
	}
}

// DecodeExtensionLeads reads a single lead object or an array of leads.
func DecodeExtensionLeads(r io.Reader) ([]model.ImportRow, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read extension payload")
	}

	var leads []ExtensionLead
	dec := json.NewDecoder(br)
	if first == '[' {
		err = dec.Decode(&leads)
	} else {
		var l ExtensionLead
		err = dec.Decode(&l)
		leads = []ExtensionLead{l}
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: decode extension payload")
	}

	rows := make([]model.ImportRow, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, l.Row())
	}
	return rows, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsAny(b, " \t\r\n") {
			return b[0], nil
		}
		if _, err := br.ReadByte(); err != nil {
			return 0, err
		}
	}
}
