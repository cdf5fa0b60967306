package db

import "time"

// ContentRow 存储某个语言下某个区块的站点文案，(locale, section) 唯一。
type ContentRow struct {
	ID        int64     `gorm:"primaryKey"`
	Locale    string    `gorm:"size:2;not null;uniqueIndex:idx_content_locale_section"`
	Section   string    `gorm:"size:100;not null;uniqueIndex:idx_content_locale_section"`
	Data      string    `gorm:"type:text;not null"`
	Version   int       `gorm:"not null;default:1"`
	UpdatedAt time.Time `gorm:"index"`
}

// TableName 与托管存储保持一致的表名。
func (ContentRow) TableName() string {
	return "content"
}
