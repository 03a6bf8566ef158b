package backend

import (
	"fmt"

	"homepay/internal/config"
	"homepay/internal/sheets/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.Backend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.Backend)
	}

	return Config{
		Type:     backendType,
		Document: appConfig.Document,
		SeedFile: appConfig.SeedFile,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		Journal:      appConfig.UsesSQLite(),

		SpreadsheetID: appConfig.GoogleSpreadsheetID,
		DriveFolderID: appConfig.GoogleDriveFolderID,
		Auth: google.Auth{
			ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
			ServiceAccountFile: appConfig.GoogleServiceAccountFile,
			OAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
			OAuthClientFile:    appConfig.GoogleOAuthClientFile,
			OAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,
			OAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
		},

		XLSXDir: appConfig.XLSXDir,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}

	case SheetsBackend:
		if !c.Auth.Configured() {
			return google.ErrNoCredentials
		}

	case XLSXBackend:
		if c.XLSXDir == "" {
			return fmt.Errorf("workbook directory is required for xlsx backend")
		}

	case MemoryBackend:
		// Memory documents live for the process only.
	}

	if c.Journal && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for the journal")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SheetsBackend, SQLiteBackend, XLSXBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
