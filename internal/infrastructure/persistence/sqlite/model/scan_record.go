package model

type ScanRecord struct {
	ID            string  `gorm:"column:id;type:text;primaryKey"`
	OwnerID       string  `gorm:"column:owner_id;type:text;not null;index;uniqueIndex:idx_scan_owner_filename"`
	Filename      string  `gorm:"column:filename;type:text;not null;uniqueIndex:idx_scan_owner_filename"`
	ExtractedText string  `gorm:"column:extracted_text;type:text"`
	Status        string  `gorm:"column:status;type:text;not null"`
	Credibility   *int    `gorm:"column:credibility"`
	Explanation   *string `gorm:"column:explanation;type:text"`
	CreatedAt     string  `gorm:"column:created_at;type:text;not null"`
}

func (ScanRecord) TableName() string {
	return "scan_records"
}
