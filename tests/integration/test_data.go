package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TestUser generates unique test user credentials using timestamp
func TestUser(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123!"
	return
}

func newEventID() uuid.UUID {
	return uuid.New()
}
