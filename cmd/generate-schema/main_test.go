package main

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// property follows properties.<name> through the decoded schema.
func property(t *testing.T, schema map[string]any, path ...string) map[string]any {
	t.Helper()

	current := schema
	for _, name := range path {
		props, ok := current["properties"].(map[string]any)
		require.True(t, ok, "no properties above %q", name)
		current, ok = props[name].(map[string]any)
		require.True(t, ok, "no property %q", name)
	}
	return current
}

func generated(t *testing.T) map[string]any {
	t.Helper()

	out, err := generate(false)
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(out, &schema))
	return schema
}

func TestSchemaUsesConfigKeys(t *testing.T) {
	schema := generated(t)

	assert.Equal(t, "DittoISO Configuration", schema["title"])
	for _, key := range []string{"logging", "server", "metrics", "image", "adapters"} {
		property(t, schema, key)
	}
	property(t, schema, "image", "naming", "prefer")
	property(t, schema, "adapters", "ftp", "auth", "users")
}

func TestSchemaCarriesEnumsAndDefaults(t *testing.T) {
	schema := generated(t)

	reader := property(t, schema, "image", "reader")
	assert.Equal(t, []any{"iso9660", "diskfs"}, reader["enum"])
	assert.Equal(t, "iso9660", reader["default"])

	blockSize := property(t, schema, "image", "block_size")
	assert.Equal(t, []any{512.0, 1024.0, 2048.0}, blockSize["enum"])
	assert.Equal(t, 2048.0, blockSize["default"])

	sourceType := property(t, schema, "image", "source", "type")
	assert.Equal(t, []any{"file", "s3", "memory"}, sourceType["enum"])

	port := property(t, schema, "adapters", "ftp", "port")
	assert.Equal(t, 2121.0, port["default"])
	assert.Nil(t, port["enum"])
}

func TestSchemaTypesDurationsAsStrings(t *testing.T) {
	schema := generated(t)

	timeout := property(t, schema, "server", "shutdown_timeout")
	assert.Equal(t, "string", timeout["type"])
	assert.Equal(t, "30s", timeout["default"])

	idle := property(t, schema, "adapters", "ftp", "idle_timeout")
	assert.Equal(t, "15m0s", idle["default"])
}

func TestOneOfSkipsElementRules(t *testing.T) {
	str := reflect.TypeOf("")
	assert.Nil(t, oneOf("required,min=1,dive,oneof=a b", str))
	assert.Equal(t, []any{"a", "b"}, oneOf("required,oneof=a b", str))
}
