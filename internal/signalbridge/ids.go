package signalbridge

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// newMessageID mints a sortable, collision-resistant id for a stored
// message row, generalizing the teacher's use of ULIDs as primary keys
// (internal/services/device_service.go).
func newMessageID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

func unixNow() int64 { return time.Now().Unix() }
