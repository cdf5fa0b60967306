package db

import "time"

// GalleryImage 定义病例前后对比照片的元数据，(case_id, image_type, image_number, locale) 唯一。
type GalleryImage struct {
	ID          int64   `gorm:"primaryKey"`
	CaseID      int     `gorm:"not null;uniqueIndex:idx_gallery_slot"`
	ImageType   string  `gorm:"size:6;not null;uniqueIndex:idx_gallery_slot"` // before, after
	ImageNumber int     `gorm:"not null;uniqueIndex:idx_gallery_slot"`
	ImageURL    *string `gorm:"size:500"`
	Description string  `gorm:"type:text"`
	Locale      string  `gorm:"size:2;not null;uniqueIndex:idx_gallery_slot"`
	CreatedAt   time.Time
}

// TableName 与托管存储保持一致的表名。
func (GalleryImage) TableName() string {
	return "gallery_images"
}
