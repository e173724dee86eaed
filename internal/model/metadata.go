package model

// Metadata is a key/value pair kept next to the records
type Metadata struct {
	Key   string `json:"key" gorm:"primaryKey;type:varchar(128)"`
	Value string `json:"value" gorm:"type:text"`
}

// TableName specifies the table name for Metadata
func (Metadata) TableName() string {
	return "metadata"
}
