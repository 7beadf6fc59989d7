// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package person holds the person model and the loader for the bundled person dataset.
package person

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wneessen/distance-provider/internal/geo"
)

// UserName is the name of the entry that represents the owner of the device.
const UserName = "User"

// ErrLoad is returned (wrapped) whenever the dataset can't be loaded.
var ErrLoad = errors.New("failed to load person dataset")

//go:embed UserLocation.json
var defaultDataset []byte

// Person is a single entry of the person list.
type Person struct {
	Name     string         `json:"name"`
	Image    string         `json:"image"`
	Location geo.Coordinate `json:"locations"`
}

// IsUser reports whether the person is the device owner.
func (p Person) IsUser() bool {
	return p.Name == UserName
}

// Load decodes a JSON array of persons from r. On error no persons are returned.
func Load(r io.Reader) ([]Person, error) {
	var persons []Person
	if err := json.NewDecoder(r).Decode(&persons); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	users := 0
	for i, p := range persons {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrLoad, i)
		}
		if p.IsUser() {
			users++
		}
	}
	if users > 1 {
		return nil, fmt.Errorf("%w: dataset contains %d %q entries", ErrLoad, users, UserName)
	}

	return persons, nil
}

// LoadFile reads the dataset from the file at path.
func LoadFile(path string) ([]Person, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer func() {
		_ = file.Close()
	}()
	return Load(file)
}

// Default returns the dataset that is bundled with the binary.
func Default() ([]Person, error) {
	return Load(bytes.NewReader(defaultDataset))
}
