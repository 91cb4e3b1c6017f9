package entities

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/pelletier/go-toml/v2"
)

// schemaFile is the layout of an entity schema file:
//
//	[[entity]]
//	name = "vendors"
//	key = "email"
//
//	  [[entity.fields]]
//	  name = "email"
//	  required = true
//	  kind = "email"
type schemaFile struct {
	Entities []core.EntitySchema `toml:"entity"`
}

// Decode parses schema definitions from TOML. Unknown keys are rejected so
// typos in field attributes do not pass silently.
func Decode(data []byte) ([]core.EntitySchema, error) {
	var f schemaFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("schema file line %d column %d: %w", row, col, err)
		}
		return nil, fmt.Errorf("decode schema file: %w", err)
	}

	var errs []error
	for _, s := range f.Entities {
		if err := s.Check(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f.Entities, nil
}

// LoadFile reads schema definitions from path.
func LoadFile(path string) ([]core.EntitySchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Decode(data)
}

// NewRegistry registers the built-in schemas followed by those in
// schemaFile, if it is not empty. A file entity may not reuse a built-in
// name.
func NewRegistry(schemaFile string) (*core.Registry, error) {
	reg, err := core.NewRegistry(Builtin()...)
	if err != nil {
		return nil, err
	}
	if schemaFile == "" {
		return reg, nil
	}

	extra, err := LoadFile(schemaFile)
	if err != nil {
		return nil, err
	}
	for _, s := range extra {
		if err := reg.Register(s); err != nil {
			return nil, fmt.Errorf("%s: %w", schemaFile, err)
		}
	}
	return reg, nil
}
