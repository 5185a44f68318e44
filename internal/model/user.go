package model

// User mirrors the 'users' table.  Only the fields shown in participation
// summaries are stored here.
type User struct {
	ID          string `json:"userId"`
	DisplayName string `json:"displayName"`
	ImagePath   string `json:"imagePath,omitempty"`
}

// UserSummary is what the user provider returns for denormalization.
type UserSummary struct {
	DisplayName string `json:"displayName"`
	ImagePath   string `json:"imagePath,omitempty"`
}
