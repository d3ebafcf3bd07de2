package models

// MentorProfile holds the mentor-specific settings of a user, including capacity.
type MentorProfile struct {
	BaseModel

	UserID          string `gorm:"type:varchar(36);uniqueIndex;not null" json:"user_id"`
	User            *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Specialty       string `gorm:"type:varchar(128)" json:"specialty"`
	Bio             string `gorm:"type:text" json:"bio"`
	StatusComment   string `gorm:"type:varchar(255)" json:"status_comment"`
	AcceptsRequests bool   `gorm:"not null" json:"accepts_requests"`
	MaxMentees      int    `gorm:"not null" json:"max_mentees"`
}

// MenteeProfile holds the mentee-specific settings of a user.
type MenteeProfile struct {
	BaseModel

	UserID    string `gorm:"type:varchar(36);uniqueIndex;not null" json:"user_id"`
	User      *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Goal      string `gorm:"type:text" json:"goal"`
	Specialty string `gorm:"type:varchar(128)" json:"specialty"`
}
