package contact

// Match is a best-effort contact resolved from a phone number or message address.
// Any identifier may be absent.
type Match struct {
	ContactID   *int64 `json:"contact_id,omitempty"`
	LocalID     *int64 `json:"local_id,omitempty"`
	UserID      *int64 `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	// NetworkTag is the contact's preferred detail type, e.g. an IM network name.
	NetworkTag string `json:"network_tag,omitempty"`
}

// Contact is a stored contact with the addresses it can be reached at.
type Contact struct {
	ID          int64    `json:"id"`
	LocalID     *int64   `json:"local_id,omitempty"`
	UserID      *int64   `json:"user_id,omitempty"`
	DisplayName string   `json:"display_name"`
	NetworkTag  string   `json:"network_tag,omitempty"`
	Addresses   []string `json:"addresses,omitempty"`
}
