package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/platform/envutil"
)

// ClientOptionsFromEnv reads service account credentials from
// GOOGLE_APPLICATION_CREDENTIALS_JSON (inline) or GOOGLE_APPLICATION_CREDENTIALS
// (path). Without either, the client falls back to ambient credentials.
func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", "", nil))
	if creds == "" {
		creds = strings.TrimSpace(envutil.String("GOOGLE_APPLICATION_CREDENTIALS", "", nil))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
