// Package store defines the user record store and its implementations.
package store

// User is the single record type the store persists. The id is assigned by
// the store on create and never changes. Username is not unique at this
// layer; any uniqueness guarantee belongs to the caller. Secret is an opaque
// payload (in practice a password hash) stored verbatim.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// Patch is a partial update. Nil fields are preserved, non-nil fields
// overwrite. The id of a record cannot be patched.
type Patch struct {
	Username *string
	Secret   *string
}

// apply merges p over u, leaving the id untouched.
func (p Patch) apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Secret != nil {
		u.Secret = *p.Secret
	}
}

// Store is the contract shared by all backends.
//
// Not-found is never an error: Get, GetByUsername and Update report a missing
// record as a nil User, Delete as false. Errors are reserved for genuine I/O
// faults while loading or persisting.
type Store interface {
	// Get returns the record with the given id, or nil if not found.
	Get(id string) (*User, error)

	// GetByUsername returns some record with the given username, or nil if
	// none exists. If duplicates exist the result is unspecified among them.
	GetByUsername(username string) (*User, error)

	// Create stores a new record under a freshly generated id and returns it.
	Create(username, secret string) (*User, error)

	// Update merges the patch over the record with the given id and returns
	// the merged record, or nil if no such record exists.
	Update(id string, patch Patch) (*User, error)

	// Delete removes the record with the given id. Returns true if it existed.
	Delete(id string) (bool, error)

	// List returns a copy of all records in unspecified order.
	List() ([]User, error)
}
