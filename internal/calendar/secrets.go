package calendar

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ErrConfigurationMissing is returned when the secrets file or a required
// credential is absent.
var ErrConfigurationMissing = errors.New("calendar configuration missing")

// Secret file keys.
const (
	KeyClientID     = "GOOGLE_CLIENT_ID"
	KeyClientSecret = "GOOGLE_CLIENT_SECRET"
	KeyRefreshToken = "GOOGLE_REFRESH_TOKEN"
	KeyCalendarID   = "GOOGLE_CALENDAR_ID"
)

// Credentials hold the OAuth2 client and refresh token.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	CalendarID   string
}

// Validate reports the first missing required credential.
func (c Credentials) Validate() error {
	for _, f := range []struct{ key, value string }{
		{KeyClientID, c.ClientID},
		{KeyClientSecret, c.ClientSecret},
		{KeyRefreshToken, c.RefreshToken},
	} {
		if f.value == "" {
			return fmt.Errorf("%w: %s", ErrConfigurationMissing, f.key)
		}
	}
	return nil
}

// LoadCredentials reads KEY=value pairs from an env-format secrets file.
func LoadCredentials(path string) (Credentials, error) {
	if path == "" {
		return Credentials{}, fmt.Errorf("%w: no secrets file configured", ErrConfigurationMissing)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, fmt.Errorf("%w: secrets file %s not found", ErrConfigurationMissing, path)
		}
		return Credentials{}, fmt.Errorf("reading secrets file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return Credentials{}, fmt.Errorf("parsing secrets file %s: %w", path, err)
	}

	creds := Credentials{
		ClientID:     v.GetString(KeyClientID),
		ClientSecret: v.GetString(KeyClientSecret),
		RefreshToken: v.GetString(KeyRefreshToken),
		CalendarID:   v.GetString(KeyCalendarID),
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}
