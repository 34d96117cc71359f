// Package lead defines the typed lead record tracked in the remote store.
package lead

import "github.com/inamasaru/leadsync/internal/genre"

// Lifecycle status of a lead.
const (
	StatusNew = "New"
)

// Payment status of a lead.
const (
	PaymentPending   = "Pending"
	PaymentCompleted = "Completed"
)

// Lead is one CRM lead record. ExternalID is the caller-supplied natural
// key used to deduplicate submissions; Price is in whole yen.
type Lead struct {
	Name        string
	ExternalID  string
	Email       string
	Phone       string
	Product     string
	Price       int64
	ExpectedCVR *float64
	Status      string
	PaymentStat string
	Notes       string
}

// Form is an incoming lead submission.
type Form struct {
	ExternalID string
	Name       string
	Email      string
	Phone      string
	Product    string
}

// FromForm builds the record to register for a submission, priced from its
// matched genre. The display name falls back to the external ID.
func FromForm(f Form, g genre.Genre) Lead {
	name := f.Name
	if name == "" {
		name = f.ExternalID
	}
	return Lead{
		Name:        name,
		ExternalID:  f.ExternalID,
		Email:       f.Email,
		Phone:       f.Phone,
		Product:     f.Product,
		Price:       g.Price,
		ExpectedCVR: g.ExpectedCVR,
		Status:      StatusNew,
		PaymentStat: PaymentPending,
	}
}
