package models

// User is the read-only projection of an account owned by the auth service.
// Billing only needs it to address outbound mail.
type User struct {
	ID    string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email string `gorm:"type:varchar(200);index" json:"email"`
	Name  string `gorm:"type:varchar(150)" json:"name"`
}
