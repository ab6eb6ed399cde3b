package instance

import "os"

// GetID identifies this worker process in logs. The deployment platform sets
// CHITCIRCLE_WORKER_ID; outside one, the hostname is close enough.
func GetID() string {
	if id := os.Getenv("CHITCIRCLE_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
