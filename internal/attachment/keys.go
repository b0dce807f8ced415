package attachment

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// KeyGenerator produces storage keys for new attachments.
// Implementations must be safe for concurrent use.
type KeyGenerator interface {
	Next() string
}

// UUIDKeys generates attachment_<uuidv7> keys. They sort by creation time
// and do not collide.
type UUIDKeys struct{}

// Next returns a fresh key.
func (UUIDKeys) Next() string {
	return Prefix + uuid.Must(uuid.NewV7()).String()
}

// TimestampKeys generates attachment_<unix millis> keys, the legacy scheme.
// Two files added in the same millisecond get the same key; the second
// write then fails with ErrKeyCollision.
type TimestampKeys struct {
	// Now returns the current time. Nil uses time.Now.
	Now func() time.Time
}

// Next returns the key for the current millisecond.
func (k TimestampKeys) Next() string {
	now := time.Now
	if k.Now != nil {
		now = k.Now
	}
	return Prefix + strconv.FormatInt(now().UnixMilli(), 10)
}

// KeysFor returns the generator for a configured key scheme name.
// Unknown names fall back to UUIDKeys.
func KeysFor(scheme string) KeyGenerator {
	if scheme == "timestamp" {
		return TimestampKeys{}
	}
	return UUIDKeys{}
}
