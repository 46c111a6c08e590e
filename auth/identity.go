package auth

// UserIdentity is the snapshot of a user that goes into a token
type UserIdentity struct {
	id    string
	email string
	role  string
}

// NewIdentityFromUser copies the claims relevant fields of user. It
// returns nil for a nil user so Issue can reject it.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{
		id:    user.ID.String(),
		email: NormalizeEmail(user.Email),
		role:  string(user.Role),
	}
}

func (u UserIdentity) ID() string { return u.id }
func (u UserIdentity) Email() string { return u.email }
func (u UserIdentity) Role() string { return u.role }
