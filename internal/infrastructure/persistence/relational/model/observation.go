package model

import "time"

type Observation struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectID     uint64    `gorm:"column:project_id;not null;index"`
	Project       *Project  `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:RESTRICT"`
	CompanyID     uint64    `gorm:"column:company_id;not null;index"`
	Company       *Company  `gorm:"foreignKey:CompanyID;references:ID;constraint:OnDelete:RESTRICT"`
	SubmitterName string    `gorm:"column:submitter_name;type:varchar(200);not null"`
	ReportDate    string    `gorm:"column:report_date;type:varchar(10);not null;index"`
	ReportTime    string    `gorm:"column:report_time;type:varchar(5);not null"`
	Location      string    `gorm:"column:location;type:text;not null"`
	Description   string    `gorm:"column:description;type:text;not null"`
	Subject       string    `gorm:"column:subject;type:varchar(40);not null"`
	ReportGroup   string    `gorm:"column:report_group;type:varchar(100);not null"`
	Consequences  string    `gorm:"column:consequences;type:varchar(20);not null;index"`
	Likelihood    string    `gorm:"column:likelihood;type:varchar(20);not null"`
	Status        string    `gorm:"column:status;type:varchar(10);not null;default:'open';index"`
	HasActionPlan bool      `gorm:"column:has_action_plan;not null;default:false"`
	ImageKey      *string   `gorm:"column:image_key;type:varchar(500)"`
	CreatedBy     string    `gorm:"column:created_by;type:varchar(320);not null;default:''"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;autoCreateTime;index"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Observation) TableName() string {
	return "observations"
}

// ObservationCategory is the link row between an observation and a safety category.
type ObservationCategory struct {
	ObservationID uint64          `gorm:"column:observation_id;not null;primaryKey"`
	Observation   *Observation    `gorm:"foreignKey:ObservationID;references:ID;constraint:OnDelete:CASCADE"`
	CategoryID    uint64          `gorm:"column:category_id;not null;primaryKey"`
	Category      *SafetyCategory `gorm:"foreignKey:CategoryID;references:ID;constraint:OnDelete:RESTRICT"`
}

func (ObservationCategory) TableName() string {
	return "observation_categories"
}
