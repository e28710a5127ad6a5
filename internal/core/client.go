package core

import (
	"regexp"
	"strings"
	"time"
)

type Client struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	AFM       string    `json:"afm"`
	Company   string    `json:"company"`
	Email     string    `json:"email"`
	Notes     string    `json:"notes"`
	Region    string    `json:"region"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	phonePattern = regexp.MustCompile(`^6\d{9}$`)
	afmPattern   = regexp.MustCompile(`^\d{9}$`)
	emailPattern = regexp.MustCompile(`.+@.+\..+`)
)

// Validate checks the fields an operator must fill in for a new client.
// Phone is a 10-digit mobile number starting with 6, afm a 9-digit tax id.
func (c Client) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(c.Name) == "" {
		verr.Add("name", "required")
	}
	switch email := strings.TrimSpace(c.Email); {
	case email == "":
		verr.Add("email", "required")
	case !emailPattern.MatchString(email):
		verr.Add("email", "invalid format")
	}
	switch phone := strings.TrimSpace(c.Phone); {
	case phone == "":
		verr.Add("phone", "required")
	case !phonePattern.MatchString(phone):
		verr.Add("phone", "must be 10 digits starting with 6")
	}
	switch afm := strings.TrimSpace(c.AFM); {
	case afm == "":
		verr.Add("afm", "required")
	case !afmPattern.MatchString(afm):
		verr.Add("afm", "must be exactly 9 digits")
	}
	if strings.TrimSpace(c.Company) == "" {
		verr.Add("company", "required")
	}
	return verr.OrNil()
}
