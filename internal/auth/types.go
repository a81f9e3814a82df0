package auth

import "time"

// Account roles. Authorization beyond the role field is out of scope here;
// the field travels in the account view for upstream consumers.
const (
	RoleConsultant = "consultant"
	RoleAdmin      = "admin"
)

// Account is the persisted identity record. PasswordHash and the refresh
// token slot never serialize outward; the json tags are a second line of
// defense behind View.
type Account struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Role         string `json:"role"`
	IsActive     bool   `json:"isActive"`

	// CurrentRefreshToken is the single slot of the revocation mechanism:
	// at most one refresh token value is valid per account at any time.
	CurrentRefreshToken string `json:"-"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// AccountView is the client-facing shape of an account. Every path that
// returns an account to a caller goes through here.
type AccountView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// View strips credentials and server-side state from the account.
func (a *Account) View() AccountView {
	return AccountView{
		ID:          a.ID,
		Email:       a.Email,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Role:        a.Role,
		IsActive:    a.IsActive,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}

// Clone returns a deep copy so repository fakes never hand out aliased state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		cp.LastLoginAt = &t
	}
	return &cp
}
