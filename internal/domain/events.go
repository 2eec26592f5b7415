package domain

// ChangeEvent is pushed to dashboards after a committed mutation.
// Delivery is at-least-once; clients keep the highest Version per EntityID.
type ChangeEvent struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	EntityID uint   `json:"entity_id"`
	Version  int64  `json:"version"`
	OwnerID  uint   `json:"owner_id"`
	// StaffVisible events also go to admins and employees.
	StaffVisible bool `json:"staff_visible,omitempty"`
	Payload      any  `json:"payload,omitempty"`
}
