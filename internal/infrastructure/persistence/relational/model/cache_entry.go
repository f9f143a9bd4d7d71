package model

type CacheEntry struct {
	Key       string `gorm:"column:cache_key;type:varchar(700);primaryKey"`
	Value     string `gorm:"column:value;type:text;not null"`
	ExpiresAt int64  `gorm:"column:expires_at;not null;default:0;index"`
	UpdatedAt string `gorm:"column:updated_at;type:varchar(40);not null"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}
