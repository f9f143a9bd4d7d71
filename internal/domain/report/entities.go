package report

import "time"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Observation is a submitted safety report. ProjectName and CompanyName are
// populated by joined reads only.
type Observation struct {
	ID            uint64
	ProjectID     uint64
	ProjectName   string
	CompanyID     uint64
	CompanyName   string
	SubmitterName string
	Date          string
	Time          string
	Location      string
	Description   string
	Subject       Subject
	ReportGroup   string
	Consequence   Consequence
	Likelihood    Likelihood
	Status        Status
	HasActionPlan bool
	ImageKey      string
	CategoryIDs   []uint64
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (o Observation) RiskScore() int { return RiskScore(o.Consequence, o.Likelihood) }

func (o Observation) RiskBand() RiskBand { return RiskBandFor(o.RiskScore()) }

// ActionPlan is a corrective action owned by exactly one observation.
type ActionPlan struct {
	ID                uint64
	ObservationID     uint64
	Action            string
	DueDate           string
	ResponsiblePerson string
	FollowUpContact   string
	Status            Status
	ImageKey          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Category struct {
	ID   uint64
	Name string
	Icon string
}

type Project struct {
	ID   uint64
	Name string
}

type Company struct {
	ID   uint64
	Name string
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	ID    uint64
	Email string
	Name  string
	Role  Role
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Detail is a fully resolved observation: names joined, categories and plans loaded.
type Detail struct {
	Observation Observation
	Categories  []Category
	ActionPlans []ActionPlan
}
