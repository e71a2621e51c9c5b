package domain

// Contact is a read-only projection of a user as seen through the external
// identity provider. The backing users and contacts tables are owned by the
// auth service; this core never writes them.
type Contact struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Phone    string `json:"phone,omitempty"`
}
