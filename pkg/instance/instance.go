package instance

import "os"

var idEnvVars = []string{"LPI_INSTANCE_ID", "DYNO", "WORKER_ID"}

// GetID returns the process instance identifier used in startup logs.
func GetID() string {
	for _, key := range idEnvVars {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
