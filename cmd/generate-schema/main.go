// Command generate-schema writes the JSON schema of the DittoISO
// configuration file.
//
// Property names follow the mapstructure tags, so the schema validates the
// YAML file as written. On top of what the reflector derives from the Go
// types, the schema carries:
//   - descriptions taken from the field comments of pkg/config and
//     pkg/adapter/ftp, when those sources are reachable from the working
//     directory
//   - defaults taken from config.GetDefaultConfig
//   - an enum for every field validated with "oneof"
//   - durations typed as strings ("30s", "15m"), the way viper reads them
//
// Usage:
//
//	generate-schema [-o config.schema.json] [-check] [-comments=true]
//
// "-o -" writes to stdout. -check leaves the file alone and exits with
// status 1 when it differs from the generated schema.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/dittoiso/pkg/config"
)

const modulePath = "github.com/marmos91/dittoiso"

// commentSources are the packages whose field comments describe the
// configuration, relative to the repository root.
var commentSources = []string{"./pkg/config", "./pkg/adapter/ftp"}

var durationType = reflect.TypeOf(time.Duration(0))

func main() {
	output := flag.String("o", "config.schema.json", "output file, - for stdout")
	check := flag.Bool("check", false, "fail if the output file is out of date")
	comments := flag.Bool("comments", true, "use Go field comments as descriptions")
	flag.Parse()

	out, err := generate(*comments)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *output == "-":
		_, _ = os.Stdout.Write(out)
	case *check:
		current, err := os.ReadFile(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *output, err)
			os.Exit(1)
		}
		if !bytes.Equal(current, out) {
			fmt.Fprintf(os.Stderr, "%s is out of date, run generate-schema\n", *output)
			os.Exit(1)
		}
		fmt.Printf("%s is up to date\n", *output)
	default:
		if err := os.WriteFile(*output, out, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *output, err)
			os.Exit(1)
		}
		fmt.Printf("JSON schema written to %s\n", *output)
	}
}

// generate renders the annotated schema as indented JSON.
func generate(withComments bool) ([]byte, error) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "mapstructure",
		Mapper:                    mapDuration,
	}

	if withComments {
		for _, dir := range commentSources {
			if _, err := os.Stat(dir); err != nil {
				fmt.Fprintf(os.Stderr, "Skipping comments from %s: %v\n", dir, err)
				continue
			}
			if err := reflector.AddGoComments(modulePath, dir); err != nil {
				return nil, fmt.Errorf("reading comments from %s: %w", dir, err)
			}
		}
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "DittoISO Configuration"
	schema.Description = "Configuration of the DittoISO read-only ISO 9660 FTP server"
	schema.Version = "1.0.0"

	annotate(schema, reflect.ValueOf(*config.GetDefaultConfig()))

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func mapDuration(t reflect.Type) *jsonschema.Schema {
	if t != durationType {
		return nil
	}
	return &jsonschema.Schema{
		Type:    "string",
		Pattern: `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
	}
}

// annotate walks the schema alongside the default configuration, adding
// defaults and enums property by property.
func annotate(s *jsonschema.Schema, defaults reflect.Value) {
	if s == nil || s.Properties == nil {
		return
	}

	t := defaults.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if !field.IsExported() || name == "" || name == "-" {
			continue
		}

		prop, ok := s.Properties.Get(name)
		if !ok {
			continue
		}

		if values := oneOf(field.Tag.Get("validate"), field.Type); values != nil {
			prop.Enum = values
		}

		value := defaults.Field(i)
		switch {
		case value.Kind() == reflect.Struct:
			annotate(prop, value)
		case value.Type() == durationType:
			prop.Default = time.Duration(value.Int()).String()
		case !value.IsZero():
			prop.Default = value.Interface()
		}
	}
}

// oneOf returns the values of a field-level oneof rule, typed like the
// field. Rules after "dive" apply to elements and are skipped.
func oneOf(tag string, typ reflect.Type) []any {
	for _, rule := range strings.Split(tag, ",") {
		if rule == "dive" {
			return nil
		}
		list, ok := strings.CutPrefix(rule, "oneof=")
		if !ok {
			continue
		}

		var values []any
		for _, v := range strings.Fields(list) {
			switch typ.Kind() {
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				n, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					continue
				}
				values = append(values, n)
			default:
				values = append(values, v)
			}
		}
		return values
	}
	return nil
}
