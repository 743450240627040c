package identity

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed me.schema.json
var meSchemaJSON []byte

const meSchemaURL = "https://flowtrack.io/schemas/me.json"

var (
	meSchemaOnce sync.Once
	meSchema     *jsonschema.Schema
	meSchemaErr  error
)

func compiledMeSchema() (*jsonschema.Schema, error) {
	meSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(meSchemaJSON))
		if err != nil {
			meSchemaErr = fmt.Errorf("parse me schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		compiler.DefaultDraft(jsonschema.Draft7)
		if err := compiler.AddResource(meSchemaURL, doc); err != nil {
			meSchemaErr = fmt.Errorf("add me schema: %w", err)
			return
		}
		meSchema, meSchemaErr = compiler.Compile(meSchemaURL)
	})
	return meSchema, meSchemaErr
}

// DecodeUser validates a /me body against the user contract and decodes it.
// A body that fails validation yields ErrInvalidPayload and no user.
func DecodeUser(body io.Reader) (*User, error) {
	schema, err := compiledMeSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var user User
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &user,
		WeaklyTypedInput: false,
		ZeroFields:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &user, nil
}
