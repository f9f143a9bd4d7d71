package model

import "time"

type Project struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:varchar(200);not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Project) TableName() string {
	return "projects"
}

type Company struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:varchar(200);not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Company) TableName() string {
	return "companies"
}

type SafetyCategory struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:varchar(200);not null;uniqueIndex"`
	Icon      string    `gorm:"column:icon;type:varchar(100);not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (SafetyCategory) TableName() string {
	return "safety_categories"
}

type User struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Email     string    `gorm:"column:email;type:varchar(320);not null;uniqueIndex"`
	Name      string    `gorm:"column:name;type:varchar(200);not null"`
	Role      string    `gorm:"column:role;type:varchar(20);not null;default:'user'"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
