// Package timeline normalizes the upstream API's nested, schema-varying
// timeline payloads into canonical user records, and rewrites content nodes
// in place for suppression.
//
// The upstream response shape varies by endpoint, by whether an item is a
// repost, and by whether it is a quote. Correctness here means coverage of
// the known shapes, not conformance to a single schema: both container and
// author extraction are ordered lists of named strategies, and new upstream
// shapes are added as new strategies.
package timeline

import "time"

// UnknownID is the placeholder identifier for records whose stable account id
// could not be located. Records carrying it must never be used as a
// moderation-action target.
const UnknownID = "unknown"

// UserRecord is the canonical unit produced by normalization.
type UserRecord struct {
	ID             string
	Handle         string
	Name           string
	Followers      int64
	Following      int64
	WeFollow       bool
	FollowedByThem bool
	Description    string
	PostCount      int64
	CreatedAt      *time.Time
	Verified       bool
	// Populated asynchronously from the shared-connections cache; nil while
	// unknown.
	SharedConnections *int
}

// Mutual reports whether the account both follows and is followed by the
// viewer. Mutuals are permanently exempt from suppression and moderation.
func (u *UserRecord) Mutual() bool {
	return u.WeFollow && u.FollowedByThem
}

// HasID reports whether the record carries a usable stable identifier.
func (u *UserRecord) HasID() bool {
	return u.ID != "" && u.ID != UnknownID
}
