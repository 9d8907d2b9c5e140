package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"

	"property-catalog/internal/contracts/schemas"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ListingDraftSchema   = "ListingDraftForm/1.0.0"
	ListingChangedSchema = "ListingChangedEvent/1.0.0"
)

var (
	compileOnce     sync.Once
	compiledSchemas map[string]*jsonschema.Schema
	compileErr      error
)

// schemaBaseURL gives embedded documents absolute ids so resolution does not
// depend on the working directory.
const schemaBaseURL = "https://property-catalog.local/schemas/"

var schemaRoots = map[string]string{
	"events": "Event",
	"forms":  "Form",
}

// loadSchemas compiles every embedded schema once. All documents are added
// as resources first so they can reference each other through $ref.
func loadSchemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true

		var paths []string
		for root := range schemaRoots {
			err := fs.WalkDir(schemas.SchemasFS, root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() || !strings.HasSuffix(path, ".json") {
					return nil
				}
				file, err := schemas.SchemasFS.Open(path)
				if err != nil {
					return err
				}
				defer file.Close()
				if err := compiler.AddResource(schemaBaseURL+path, file); err != nil {
					return fmt.Errorf("failed to add schema resource %s: %w", path, err)
				}
				paths = append(paths, path)
				return nil
			})
			if err != nil {
				compileErr = fmt.Errorf("error walking schema resources: %w", err)
				return
			}
		}

		out := make(map[string]*jsonschema.Schema, len(paths))
		for _, path := range paths {
			schema, err := compiler.Compile(schemaBaseURL + path)
			if err != nil {
				compileErr = fmt.Errorf("could not compile schema %s: %w", path, err)
				return
			}
			if key := generateKeyFromPath(path); key != "" {
				out[key] = schema
			}
		}
		compiledSchemas = out
	})
	return compiledSchemas, compileErr
}

// generateKeyFromPath turns "forms/listing-draft/v1.json" into
// "ListingDraftForm/1.0.0".
func generateKeyFromPath(path string) string {
	parts := strings.Split(strings.TrimSuffix(path, ".json"), "/")
	if len(parts) != 3 {
		return ""
	}
	suffix, ok := schemaRoots[parts[0]]
	if !ok {
		return ""
	}

	caser := cases.Title(language.English)
	var name strings.Builder
	for _, p := range strings.Split(parts[1], "-") {
		name.WriteString(caser.String(p))
	}
	name.WriteString(suffix)

	version := strings.Replace(parts[2], "v", "", 1) + ".0.0"
	return fmt.Sprintf("%s/%s", name.String(), version)
}

// Validate checks a JSON document against the schema registered under key.
func Validate(key string, body []byte) error {
	compiled, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := compiled[key]
	if !ok {
		return fmt.Errorf("schema %q not found", key)
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("document is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("JSON schema validation failed: %w", err)
	}
	return nil
}

var quotedName = regexp.MustCompile(`'([^']+)'`)

// FieldErrors flattens a schema validation error into field -> message.
// Errors on the document root (missing properties) are reported per property.
func FieldErrors(err error) map[string]string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	fields := make(map[string]string)
	collectLeaves(verr, fields)
	return fields
}

func collectLeaves(verr *jsonschema.ValidationError, fields map[string]string) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			collectLeaves(cause, fields)
		}
		return
	}

	field := strings.TrimPrefix(verr.InstanceLocation, "/")
	if i := strings.Index(field, "/"); i >= 0 {
		field = field[:i]
	}

	if field == "" && strings.HasSuffix(verr.KeywordLocation, "/required") {
		for _, m := range quotedName.FindAllStringSubmatch(verr.Message, -1) {
			fields[m[1]] = "is required"
		}
		return
	}
	if field == "" {
		field = "_"
	}
	if _, seen := fields[field]; !seen {
		fields[field] = verr.Message
	}
}
