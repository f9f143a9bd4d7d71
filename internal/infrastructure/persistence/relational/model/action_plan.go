package model

import "time"

type ActionPlan struct {
	ID                uint64       `gorm:"column:id;primaryKey;autoIncrement"`
	ObservationID     uint64       `gorm:"column:observation_id;not null;index"`
	Observation       *Observation `gorm:"foreignKey:ObservationID;references:ID;constraint:OnDelete:RESTRICT"`
	Action            string       `gorm:"column:action;type:text;not null"`
	DueDate           string       `gorm:"column:due_date;type:varchar(10);not null"`
	ResponsiblePerson string       `gorm:"column:responsible_person;type:varchar(200);not null"`
	FollowUpContact   string       `gorm:"column:follow_up_contact;type:varchar(200);not null"`
	Status            string       `gorm:"column:status;type:varchar(10);not null;default:'open'"`
	ImageKey          *string      `gorm:"column:image_key;type:varchar(500)"`
	CreatedAt         time.Time    `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt         time.Time    `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (ActionPlan) TableName() string {
	return "action_plans"
}
