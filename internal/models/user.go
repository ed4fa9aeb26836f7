package models

// User is the authenticated caller as asserted by a verified token.
// Accounts are managed outside this service; nothing here is persisted.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsStaff  bool   `json:"is_staff"`
}
