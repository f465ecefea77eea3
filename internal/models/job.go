package models

// Job is a posting owned by an employer. Only the fields needed for ownership
// checks and notification text are modelled here.
type Job struct {
	BaseModel

	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Company     string `gorm:"type:varchar(255)" json:"company,omitempty"`
	Location    string `gorm:"type:varchar(255)" json:"location,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	CreatedBy   string `gorm:"type:varchar(36);not null;index" json:"createdBy"`
	Owner       *User  `gorm:"foreignKey:CreatedBy" json:"owner,omitempty"`
}
