package types

import "strings"

// Address is the shipping destination stored on orders as JSONB.
type Address struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country,omitempty"`
}

// IsZero reports whether no address fields are populated.
func (a Address) IsZero() bool {
	return a == Address{}
}

// NormalizedPincode trims whitespace from the pincode for provider calls.
func (a Address) NormalizedPincode() string {
	return strings.TrimSpace(a.Pincode)
}
