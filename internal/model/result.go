package model

// Strategy is the policy applied to rows whose contact already exists.
type Strategy string

const (
	StrategySkip      Strategy = "skip"
	StrategyUpdate    Strategy = "update"
	StrategyCreateNew Strategy = "create_new"
)

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategySkip, StrategyUpdate, StrategyCreateNew:
		return true
	default:
		return false
	}
}

// MatchType names the rule that produced a match.
type MatchType string

const (
	MatchNone             MatchType = ""
	MatchDomain           MatchType = "domain"
	MatchName             MatchType = "name"
	MatchEmail            MatchType = "email"
	MatchNameCompany      MatchType = "name_company"
	MatchEmailIntra       MatchType = "email_intra"
	MatchNameCompanyIntra MatchType = "name_company_intra"
)

// IsIntra reports whether the match refers to an earlier row of the same batch.
func (m MatchType) IsIntra() bool {
	return m == MatchEmailIntra || m == MatchNameCompanyIntra
}

// ContactStatus is the preview classification of a row's contact.
type ContactStatus string

const (
	ContactNew       ContactStatus = "new"
	ContactDuplicate ContactStatus = "duplicate"
)

// CompanyStatus is the preview classification of a row's company.
type CompanyStatus string

const (
	CompanyNew      CompanyStatus = "new"
	CompanyExisting CompanyStatus = "existing"
	CompanyNone     CompanyStatus = "none"
)

// Action is the terminal outcome of one row in an import execution.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
	ActionError   Action = "error"
)

// CompanyAction records how a row's company was resolved.
type CompanyAction string

const (
	CompanyActionNone    CompanyAction = "none"
	CompanyActionCreated CompanyAction = "created"
	CompanyActionLinked  CompanyAction = "linked"
)

// Reason codes for rows that cannot be imported.
const (
	ReasonNoName = "no_name"
)

// Conflict is an incoming value that differs from a non-empty existing value.
type Conflict struct {
	Field    string `json:"field"`
	Existing string `json:"existing"`
	Incoming string `json:"incoming"`
}

// DedupDecision is the preview classification of one input row.
type DedupDecision struct {
	Row              int           `json:"row"`
	ContactStatus    ContactStatus `json:"contact_status"`
	ContactMatchType MatchType     `json:"contact_match_type"`
	ContactMatchID   int64         `json:"contact_match_id,omitempty"`
	ContactMatchName string        `json:"contact_match_name,omitempty"`
	IntraRow         *int          `json:"intra_row,omitempty"`
	CompanyStatus    CompanyStatus `json:"company_status"`
	CompanyMatchType MatchType     `json:"company_match_type"`
	CompanyMatchID   int64         `json:"company_match_id,omitempty"`
	CompanyIntraRow  *int          `json:"company_intra_row,omitempty"`
	Reason           string        `json:"reason,omitempty"`
}

// DedupRow is the audit entry recorded for one row of an import execution.
type DedupRow struct {
	Row                  int           `json:"row"`
	Action               Action        `json:"action"`
	MatchType            MatchType     `json:"match_type"`
	ContactID            int64         `json:"contact_id,omitempty"`
	CompanyID            int64         `json:"company_id,omitempty"`
	DisplayName          string        `json:"display_name,omitempty"`
	FieldsUpdated        []string      `json:"fields_updated"`
	Conflicts            []Conflict    `json:"conflicts"`
	Reason               string        `json:"reason,omitempty"`
	CompanyAction        CompanyAction `json:"company_action"`
	CompanyMatchType     MatchType     `json:"company_match_type"`
	CompanyFieldsUpdated []string      `json:"company_fields_updated,omitempty"`
	CompanyConflicts     []Conflict    `json:"company_conflicts,omitempty"`
}

// ImportResult aggregates the outcome of an import execution.
type ImportResult struct {
	ContactsCreated  int        `json:"contacts_created"`
	ContactsUpdated  int        `json:"contacts_updated"`
	ContactsSkipped  int        `json:"contacts_skipped"`
	ContactsErrored  int        `json:"contacts_errored"`
	CompaniesCreated int        `json:"companies_created"`
	CompaniesLinked  int        `json:"companies_linked"`
	DedupRows        []DedupRow `json:"dedup_rows"`
}
