package config

import (
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions returns the credential options shared by the GCP clients.
// Inline JSON wins over a credentials file; with neither set the clients fall
// back to application default credentials.
func (g GCPConfig) ClientOptions() []option.ClientOption {
	if js := strings.TrimSpace(g.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(g.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}
