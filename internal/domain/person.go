package domain

import "time"

// Person is a registered resident. Created by the enumeration workflow;
// this service only reads it.
type Person struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	VillageID   int64     `json:"village_id"`
	FullName    string    `json:"full_name"`
	Sex         string    `json:"sex,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Worker is a staff account (enumerator, screener, clinician, admin).
type Worker struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	DisplayName  string    `json:"display_name,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
