package models

// Visit statuses.
const (
	VisitPending  = "PENDING"
	VisitApproved = "APPROVED"
	VisitRejected = "REJECTED"
	VisitCanceled = "CANCELED"
)

// Visit is a scheduled visit to an inmate on a calendar date and hour.
type Visit struct {
	BaseModel

	VisitorName string  `gorm:"type:varchar(255);not null" json:"visitor_name"`
	InmateName  string  `gorm:"type:varchar(255);not null" json:"inmate_name"`
	InmateID    *string `gorm:"type:varchar(36);index" json:"inmate_id"`
	VisitDate   Date    `gorm:"type:date;not null;index" json:"visit_date"`
	VisitHour   string  `gorm:"type:varchar(5);not null" json:"visit_hour"`
	Status      string  `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	Notes       *string `gorm:"type:text" json:"notes"`
	CreatedBy   *string `gorm:"type:varchar(36);index" json:"created_by"`

	Inmate  *Inmate `gorm:"foreignKey:InmateID;constraint:OnDelete:SET NULL" json:"-"`
	Creator *User   `gorm:"foreignKey:CreatedBy;constraint:OnDelete:SET NULL" json:"-"`
}
