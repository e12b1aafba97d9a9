package model

// User is the full user record as stored. The password hash never
// leaves the service layer in serialized form.
type User struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	PasswordHash string  `json:"-"`
	IsAdmin      bool    `json:"is_admin"`
	SquadID      *string `json:"squad_id"`
}

// UserProfile is the reduced projection a team leader may see on a member
// of their own team or on a peer leader. No password hash, no admin flag.
type UserProfile struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	SquadID   *string `json:"squad_id"`
}

// Profile strips the user down to the leader-visible projection.
func (u *User) Profile() *UserProfile {
	return &UserProfile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		SquadID:   u.SquadID,
	}
}
