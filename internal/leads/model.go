package leads

import "time"

// Lead is a prospective customer owned by a sales user.
type Lead struct {
	ID          string    `json:"id"`
	ClinicID    string    `json:"clinic_id,omitempty"`
	SalesUserID string    `json:"sales_user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// StatusWon is the terminal lead status set when a proposal is accepted.
const StatusWon = "won"
