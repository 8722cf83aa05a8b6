package domain

// Contact is a person or account in the CRM contact directory.
type Contact struct {
	ID                 string        `json:"id"`
	Email              string        `json:"email"`
	Phone              string        `json:"phone"`
	Type               string        `json:"type"`
	FirstName          string        `json:"firstName,omitempty"`
	LastName           string        `json:"lastName,omitempty"`
	FirstNameLowerCase string        `json:"firstNameLowerCase,omitempty"`
	LastNameLowerCase  string        `json:"lastNameLowerCase,omitempty"`
	CustomFields       []CustomField `json:"customFields,omitempty"`
}

// Role resolves the contact type; unknown types yield an empty role.
func (c *Contact) Role() Role {
	if c == nil {
		return ""
	}
	role, _ := ParseRole(c.Type)
	return role
}
