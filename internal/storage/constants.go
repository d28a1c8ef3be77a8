package storage

import "time"

const (
	// ConnectionRetrySleep is the sleep duration between connection retries
	ConnectionRetrySleep = 2 * time.Second
	// maxConnectionRetries is the number of retries for initial connection
	maxConnectionRetries = 10
)

// migrationLockID is the advisory lock held while goose runs.
const migrationLockID = 1000
