package types

// User is the authenticated account returned by login, register and profile update
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
	Bio      string `json:"bio,omitempty"`
	Image    string `json:"image,omitempty"`
}

// Author returns the public profile for the user
func (u User) Author() Author {
	return Author{Username: u.Username, Image: u.Image}
}

// UserEnvelope is the {"user": ...} wrapper used by the API
type UserEnvelope struct {
	User User `json:"user"`
}

// Credentials are posted to the login endpoint
type Credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"notblank"`
}

// Validate checks the sign-in form rules
func (c Credentials) Validate() error {
	return checkStruct(c)
}

// Registration is posted to the sign-up endpoint
type Registration struct {
	Username string `json:"username" binding:"notblank,min=3,max=20"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=40"`
}

// Validate checks the sign-up form rules
func (r Registration) Validate() error {
	return checkStruct(r)
}

// ProfileUpdate is sent to the user endpoint; empty Password and Image are omitted
type ProfileUpdate struct {
	Username string `json:"username" binding:"notblank,min=3,max=20"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password,omitempty" binding:"omitempty,min=6,max=40"`
	Image    string `json:"image,omitempty" binding:"omitempty,imageurl"`
}

// Validate checks the profile form rules
func (p ProfileUpdate) Validate() error {
	return checkStruct(p)
}
