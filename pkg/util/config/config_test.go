package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stretchr/testify/assert"
)

func TestRead(t *testing.T) {
	// Read config without setting config file
	{
		err := ReadInConfig()
		require.NoError(t, err)
		assert.Equal(t, 0, len(config))
	}

	// Read config from file
	{
		SetConfigFile("tstdata/ok.json")
		err := ReadInConfig()
		require.NoError(t, err)
		assert.Equal(t, 2, len(config))
	}

	// Missing file
	{
		SetConfigFile("tstdata/missing.json")
		err := ReadInConfig()
		require.Error(t, err)
	}

	// Not valid json
	{
		r := strings.NewReader(`{"store":{"dir":"/var/run`)
		err := ReadConfig(r)
		require.Error(t, err)
	}
}

func TestGet(t *testing.T) {
	//Empty config
	config = map[string]interface{}{}
	v := Get("store")
	assert.Nil(t, v)

	config = map[string]interface{}{
		"port": 8080,
		"export": map[string]interface{}{
			"mode":   "s3",
			"secure": true,
		},
	}
	// Check top-level int
	vInt, isInt := Get("port").(int)
	require.True(t, isInt)
	assert.Equal(t, 8080, vInt)

	// Subpath missing
	v = Get("port.sub")
	assert.Nil(t, v)

	// Subpath OK
	vBool, isBool := Get("export.secure").(bool)
	require.True(t, isBool)
	assert.True(t, vBool)
}

type exportConf struct {
	Mode   string `json:"mode"`
	Secure bool   `json:"secure"`
	Bucket string `json:"bucket" env:"EXPORT_BUCKET"`
}

func TestUnmarshal(t *testing.T) {
	config = map[string]interface{}{
		"port": 8080,
		"export": map[string]interface{}{
			"mode":   "s3",
			"secure": true,
		},
	}

	var v1 exportConf
	err := Unmarshal("port", &v1)
	require.Error(t, err)

	var v2 exportConf
	os.Setenv("EXPORT_BUCKET", "ml-artifacts")
	err = Unmarshal("export", &v2)
	require.NoError(t, err)
	assert.True(t, v2.Secure)
	assert.Equal(t, "s3", v2.Mode)
	assert.Equal(t, "ml-artifacts", v2.Bucket)

	// env.Parse error on non-pointer
	var v3 exportConf
	err = Unmarshal("missing", v3)
	require.Error(t, err)
}
