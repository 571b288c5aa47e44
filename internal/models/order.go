package models

import "strings"

// Column headers in the jersey orders worksheet. The sheet has no stable
// row id; rows are addressed by the participant name tuple.
const (
	ColLink          = "Link"
	ColLast          = "Last"
	ColFirst         = "First"
	ColBirthdate     = "Birthdate"
	ColBirthYear     = "Birth Year"
	ColJerseyName    = "Jersey Name"
	ColJerseySize    = "Jersey Size"
	ColJerseyNumber  = "Jersey #"
	ColJerseyType    = "Jersey Type"
	ColPantShellSize = "Pant Shell Size"
	ColSockSize      = "Sock Size"
	ColSockType      = "Sock Type"
	ColContacted     = "Contacted"
	ColFitting       = "Fitting"
	ColConfirmed     = "Confirmed"
	ColAddress       = "Address"
	ColCity          = "City"
	ColState         = "State"
	ColZip           = "Zip"
	ColMembership    = "Membership"
	ColRegistered    = "Registered"
)

// SentinelTrailerName marks the worksheet's trailing template row, which
// is never a real order.
const SentinelTrailerName = "Last Jersey Name"

// MaxParents is the number of parent contact column groups in the sheet.
const MaxParents = 4

// ParentContact is one of up to four parent/guardian contacts on a row.
type ParentContact struct {
	Name      string
	Email     string
	Phone     string
	Volunteer bool
}

// OrderIdentity is the name tuple used to re-locate a row at write time.
// Duplicate names are not disambiguated; the sheet has no better key.
type OrderIdentity struct {
	FirstName string
	LastName  string
}

func (id OrderIdentity) FullName() string {
	return strings.TrimSpace(id.FirstName + " " + id.LastName)
}

// Order is one row of the jersey orders worksheet.
type Order struct {
	Row int // 1-based sheet row, header is row 1

	Link          string
	FirstName     string
	LastName      string
	Birthdate     string
	BirthYear     string
	JerseyName    string
	JerseySize    string
	JerseyNumber  string
	JerseyType    string
	PantShellSize string
	SockSize      string
	SockType      string

	Contacted CellStatus
	Fitting   CellStatus
	Confirmed CellStatus

	Parents [MaxParents]ParentContact

	Address    string
	City       string
	State      string
	Zip        string
	Membership string
	Registered string
}

func (o *Order) Identity() OrderIdentity {
	return OrderIdentity{FirstName: o.FirstName, LastName: o.LastName}
}

func (o *Order) FullName() string {
	return o.Identity().FullName()
}

// ParentEmails returns the non-empty parent emails in column order.
func (o *Order) ParentEmails() []string {
	var emails []string
	for _, p := range o.Parents {
		if e := strings.TrimSpace(p.Email); e != "" {
			emails = append(emails, e)
		}
	}
	return emails
}

// HasIdentity reports whether the row carries both name fields.
func (o *Order) HasIdentity() bool {
	return strings.TrimSpace(o.FirstName) != "" && strings.TrimSpace(o.LastName) != ""
}

// IsSentinelTrailer reports whether the row is the worksheet's template
// trailer row.
func (o *Order) IsSentinelTrailer() bool {
	return o.FullName() == SentinelTrailerName || o.JerseyName == SentinelTrailerName
}
