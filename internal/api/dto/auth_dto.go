package dto

// LoginRequest payload; also used to request a hyperlink.
type LoginRequest struct {
	Email string `json:"email" form:"email"`
	Phone string `json:"phone" form:"phone"`
}

// RefreshRequest payload.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

// HyperlinkResponse carries the generated link.
type HyperlinkResponse struct {
	URL string `json:"url"`
}
