package subagent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/bindgen/errors"
)

func sampleOptions() Options {
	return Options{
		Namespace:   "vulkan",
		Headers:     []string{"vulkan/vulkan_core.h"},
		IncludeDirs: []string{"include", `C:\sdk\"quoted"\`},
		Defines:     []string{"VK_NO_PROTOTYPES", `VKAPI_ATTR=`, `NAME="va\"lue"`},
		Output:      OutputHints{Dir: "out", Package: "vk", Payload: "/tmp/vk.msgpack"},
	}
}

func TestEncodeEscapesQuotes(t *testing.T) {
	encoded, err := sampleOptions().Encode()
	require.NoError(t, err)

	assert.Contains(t, encoded, `\"namespace\":\"vulkan\"`)
	for i := 0; i < len(encoded); i++ {
		if encoded[i] == '"' {
			require.Greater(t, i, 0)
			assert.Equal(t, byte('\\'), encoded[i-1], "unescaped quote at %d", i)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	opts := sampleOptions()
	encoded, err := opts.Encode()
	require.NoError(t, err)

	back, err := DecodeOptions(encoded)
	require.NoError(t, err)
	assert.Equal(t, opts, back)
}

func TestDecodeOptionsInvalid(t *testing.T) {
	_, err := DecodeOptions("not json")
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestCloneIsDeep(t *testing.T) {
	opts := sampleOptions()
	c := opts.Clone()
	c.Headers[0] = "other.h"
	c.Defines = append(c.Defines, "X")

	assert.Equal(t, "vulkan/vulkan_core.h", opts.Headers[0])
	assert.Len(t, opts.Defines, 3)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, sampleOptions().Validate())

	o := sampleOptions()
	o.Namespace = " "
	assert.True(t, errors.IsInvalidConfig(o.Validate()))

	o = sampleOptions()
	o.Headers = nil
	err := o.Validate()
	assert.True(t, errors.IsInvalidConfig(err))
	assert.NotEmpty(t, errors.GetAllHints(err))

	o = sampleOptions()
	o.Defines = []string{"=1"}
	assert.Error(t, o.Validate())
}

func TestDefineMap(t *testing.T) {
	m := sampleOptions().DefineMap()
	assert.Equal(t, "", m["VK_NO_PROTOTYPES"])
	assert.Equal(t, "", m["VKAPI_ATTR"])
	assert.Equal(t, `"va\"lue"`, m["NAME"])
	_, ok := m["MISSING"]
	assert.False(t, ok)
}
