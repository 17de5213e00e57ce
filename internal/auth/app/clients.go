package app

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"gopkg.in/yaml.v3"
)

// clientsFile is the registry layout:
//
//	clients:
//	  - id: app
//	    jwt:
//	      accessTokenExpiry: 10m
//	    loginOtp:
//	      sms:
//	        otpChallengeEnabled: true
type clientsFile struct {
	Clients []domain.Client `yaml:"clients"`
}

// LoadClients reads the client registry from path.
func LoadClients(path string) (domain.Clients, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clients file: %w", err)
	}
	defer f.Close()

	clients, err := ParseClients(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return clients, nil
}

// ParseClients decodes a registry and fills every unset setting with its
// default. Unknown keys are rejected so a typo can't silently fall back to
// a default.
func ParseClients(r io.Reader) (domain.Clients, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file clientsFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode clients: %w", err)
	}
	if len(file.Clients) == 0 {
		return nil, errors.New("no clients configured")
	}

	clients := make(domain.Clients, len(file.Clients))
	for i, c := range file.Clients {
		if c.ID == "" {
			return nil, fmt.Errorf("client %d: id is required", i)
		}
		if _, dup := clients[c.ID]; dup {
			return nil, fmt.Errorf("client %q: duplicate id", c.ID)
		}

		c.ApplyDefaults()
		if err := c.OTP.Validate(); err != nil {
			return nil, fmt.Errorf("client %q: otp: %w", c.ID, err)
		}
		if err := c.LoginOtpOptions().Validate(); err != nil {
			return nil, fmt.Errorf("client %q: loginOtp: %w", c.ID, err)
		}
		clients[c.ID] = c
	}
	return clients, nil
}
