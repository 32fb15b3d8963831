package models

// Inmate statuses.
const (
	InmateEnabled = "ENABLED"
	InmateBlocked = "BLOCKED"
)

// Identity document types.
const (
	DocCedula    = "CEDULA"
	DocPasaporte = "PASAPORTE"
	DocOtro      = "OTRO"
)

// Inmate is a person held in the facility that visitors can be authorised for.
type Inmate struct {
	BaseModel

	FirstName  string  `gorm:"type:varchar(120);not null" json:"first_name"`
	LastName   string  `gorm:"type:varchar(120);not null" json:"last_name"`
	DocType    string  `gorm:"type:varchar(16);not null;default:'CEDULA'" json:"doc_type"`
	NationalID *string `gorm:"type:varchar(64);index" json:"national_id"`
	BirthDate  *Date   `gorm:"type:date" json:"birth_date"`
	Pavilion   *string `gorm:"type:varchar(64)" json:"pavilion"`
	Cell       *string `gorm:"type:varchar(64)" json:"cell"`
	Status     string  `gorm:"type:varchar(16);not null;default:'ENABLED';index" json:"status"`
	Notes      *string `gorm:"type:text" json:"notes"`
}

// FullName joins first and last name.
func (i Inmate) FullName() string {
	switch {
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	default:
		return i.FirstName + " " + i.LastName
	}
}
