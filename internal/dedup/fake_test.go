package dedup

import (
	"context"
	"github.com/sells-group/leadimport/internal/model"
	"github.com/sells-group/leadimport/internal/normalize"
)

// memStore is an in-memory ReadWriter with the same matching semantics as
// the SQL stores: normalized key comparisons, oldest record wins.
type memStore struct {
	companies []*model.Company
	contacts  []*model.Contact
	nextID    int64

	failOn string
	err    error

	companyUpdates map[int64]map[string]string
	contactUpdates map[int64]map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		nextID:         100,
		companyUpdates: make(map[int64]map[string]string),
		contactUpdates: make(map[int64]map[string]string),
	}
}

func (m *memStore) fail(op string) error {
	if m.failOn == op {
		return m.err
	}
	return nil
}

func (m *memStore) addCompany(c model.Company) *model.Company {
	if c.ID == 0 {
		m.nextID++
		c.ID = m.nextID
	}
	m.companies = append(m.companies, &c)
	return &c
}

func (m *memStore) addContact(c model.Contact) *model.Contact {
	if c.ID == 0 {
		m.nextID++
		c.ID = m.nextID
	}
	m.contacts = append(m.contacts, &c)
	return &c
}

func (m *memStore) companyByID(id int64) *model.Company {
	for _, c := range m.companies {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *memStore) FindCompanyByDomain(_ context.Context, tenantID, domain string) (*model.Company, error) {
	if err := m.fail("FindCompanyByDomain"); err != nil {
		return nil, err
	}
	for _, c := range m.companies {
		if c.TenantID == tenantID && normalize.Domain(c.Domain) == domain {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindCompanyByName(_ context.Context, tenantID, lowerName string) (*model.Company, error) {
	if err := m.fail("FindCompanyByName"); err != nil {
		return nil, err
	}
	for _, c := range m.companies {
		if c.TenantID == tenantID && normalize.Lower(c.Name) == lowerName {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindContactByEmail(_ context.Context, tenantID, lowerEmail string) (*model.Contact, error) {
	if err := m.fail("FindContactByEmail"); err != nil {
		return nil, err
	}
	for _, c := range m.contacts {
		if c.TenantID == tenantID && normalize.Email(c.EmailAddress) == lowerEmail {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindContactByNameAndCompany(_ context.Context, tenantID, lowerFirst, lowerLast, lowerCompany string) (*model.Contact, error) {
	if err := m.fail("FindContactByNameAndCompany"); err != nil {
		return nil, err
	}
	for _, c := range m.contacts {
		if c.TenantID != tenantID || c.CompanyID == nil {
			continue
		}
		co := m.companyByID(*c.CompanyID)
		if co == nil {
			continue
		}
		if normalize.Lower(c.FirstName) == lowerFirst && normalize.Lower(c.LastName) == lowerLast &&
			normalize.Lower(co.Name) == lowerCompany {
			cp := *c
			cp.CompanyName = co.Name
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateCompany(_ context.Context, c *model.Company) error {
	if err := m.fail("CreateCompany"); err != nil {
		return err
	}
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.companies = append(m.companies, &cp)
	return nil
}

func (m *memStore) UpdateCompanyFields(_ context.Context, tenantID string, id int64, fields map[string]string) error {
	if err := m.fail("UpdateCompanyFields"); err != nil {
		return err
	}
	for _, c := range m.companies {
		if c.ID == id && c.TenantID == tenantID {
			for k, v := range fields {
				c.SetField(k, v)
			}
		}
	}
	m.companyUpdates[id] = fields
	return nil
}

func (m *memStore) CreateContact(_ context.Context, c *model.Contact) error {
	if err := m.fail("CreateContact"); err != nil {
		return err
	}
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.contacts = append(m.contacts, &cp)
	return nil
}

func (m *memStore) UpdateContactFields(_ context.Context, tenantID string, id int64, fields map[string]string) error {
	if err := m.fail("UpdateContactFields"); err != nil {
		return err
	}
	for _, c := range m.contacts {
		if c.ID == id && c.TenantID == tenantID {
			for k, v := range fields {
				c.SetField(k, v)
			}
		}
	}
	m.contactUpdates[id] = fields
	return nil
}

func (m *memStore) contactByID(id int64) *model.Contact {
	for _, c := range m.contacts {
		if c.ID == id {
			return c
		}
	}
	return nil
}
