package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"

	brierr "bri/internal/errors"
)

// SeedProgrammer is one account from the seed file.
type SeedProgrammer struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Location string `toml:"location"`
}

// Seed is the content of the seed file:
//
//	[[programmer]]
//	username = "toto"
//	password = "toto"
//	location = "ftp://localhost:2121/classes/"
type Seed struct {
	Programmers []SeedProgrammer `toml:"programmer"`
}

// DemoSeed is used when no seed file exists.
func DemoSeed() *Seed {
	return &Seed{Programmers: []SeedProgrammer{{
		Username: DemoUsername,
		Password: DemoPassword,
		Location: DemoLocation,
	}}}
}

// LoadSeed reads the seed file at path, expanding a leading "~".  A
// missing file yields the demo seed and found=false.  Unknown keys
// are an error so that a typo does not silently drop an account.
func LoadSeed(path string) (seed *Seed, found bool, err error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, false, &brierr.ConfigError{Field: "seed", Value: path, Message: err.Error()}
	}

	seed = &Seed{}
	md, err := toml.DecodeFile(expanded, seed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DemoSeed(), false, nil
		}
		return nil, false, &brierr.ConfigError{Field: "seed", Value: expanded, Message: err.Error()}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, true, &brierr.ConfigError{
			Field: "seed", Value: expanded,
			Message: "unknown keys: " + strings.Join(keys, ", "),
			Hint:    "each [[programmer]] takes username, password and location",
		}
	}

	for i, p := range seed.Programmers {
		if p.Username == "" || p.Location == "" {
			return nil, true, &brierr.ConfigError{
				Field: "seed", Value: expanded,
				Message: fmt.Sprintf("programmer #%d needs a username and a location", i+1),
			}
		}
	}
	return seed, true, nil
}
