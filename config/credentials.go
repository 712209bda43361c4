package config

import (
	"errors"
	"fmt"
	"os"
)

// EnvPassword is the default environment variable holding the bus password.
const EnvPassword = "BUSRPC_PASSWORD"

var ErrPasswordNotSet = errors.New("config: bus password not set")

// Static supplies a fixed password. Intended for tests and local tooling.
type Static struct {
	Password string
}

func (s Static) BusPassword() (string, error) {
	return s.Password, nil
}

// FromEnv reads the bus password from an environment variable.
type FromEnv struct {
	// Var overrides EnvPassword when non-empty.
	Var string
}

func (e FromEnv) BusPassword() (string, error) {
	name := e.Var
	if name == "" {
		name = EnvPassword
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPasswordNotSet, name)
	}
	return v, nil
}
