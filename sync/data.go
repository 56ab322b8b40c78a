package sync

import "context"

// DirectorySource abstracts the identity directory the roster is read from.
type DirectorySource interface {
	Populate(ctx context.Context) error
	Users(func(*DirectoryUser))
}

// DirectoryUser is the normalized shape of one directory account.
type DirectoryUser struct {
	Id             string
	DisplayName    string
	Email          string
	JobTitle       string
	Department     string
	EmployeeId     string
	ManagerId      string
	ManagerName    string
	ManagerEmail   string
	Enabled        bool
	ServiceAccount bool
}

// Department is one organizational unit as XoneCloud understands it.
// Name is the unique key within a run.
type Department struct {
	Name           string  `json:"name"`
	Manager        string  `json:"manager"`
	ManagerEmail   string  `json:"manager_email"`
	WorkingdayName *string `json:"workingday_name"`
	UserName       string  `json:"user_name"`
}

// Collaborator is one employee record as XoneCloud understands it.
type Collaborator struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayname"`
	Status      bool   `json:"status"`
	JobTitle    string `json:"job_title,omitempty"`
	Department  string `json:"department"`
	Workingday  string `json:"workingday"`
	Email       string `json:"email"`
	ExternalId  string `json:"external_id"`
	ManagerId   string `json:"manager_id,omitempty"`
}

// ReportEntry records the outcome of one write call (a record or a chunk).
// Response carries a bounded slice of the target platform's reply, which is
// where it returns created identifiers.
type ReportEntry struct {
	Name     string
	Records  int
	Response string
	Error    string
	DryRun   bool
}

// PublishReport accumulates per-call outcomes for one collection.
type PublishReport struct {
	Collection string
	Sent       int
	Failed     int
	Entries    []ReportEntry
}

func (r *PublishReport) success(name string, records int, response string) {
	r.Sent += records
	r.Entries = append(r.Entries, ReportEntry{Name: name, Records: records, Response: response})
}

func (r *PublishReport) failure(name string, records int, err error) {
	r.Failed += records
	r.Entries = append(r.Entries, ReportEntry{Name: name, Records: records, Error: err.Error()})
}

func (r *PublishReport) wouldSend(name string, records int) {
	r.Sent += records
	r.Entries = append(r.Entries, ReportEntry{Name: name, Records: records, DryRun: true})
}

// Ok reports whether every record reached the target (or would have, in dry-run).
func (r *PublishReport) Ok() bool {
	return r == nil || r.Failed == 0
}

// RunSummary aggregates the counts a full run produces.
type RunSummary struct {
	UsersFetched  int
	UsersFiltered int
	Departments   *PublishReport
	Collaborators *PublishReport
}

// Ok reports whether the run completed without record-level failures.
func (s *RunSummary) Ok() bool {
	return s.Departments.Ok() && s.Collaborators.Ok()
}
