package fields

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueString(t *testing.T) {
	assert.Equal(t, "Yes", Bool(true).String())
	assert.Equal(t, "No", Bool(false).String())
	assert.Equal(t, "Porto U", Text("Porto U").String())
	assert.True(t, Bool(false).IsBool())
	assert.False(t, Text("true").IsBool())
}

func TestValuesJSON(t *testing.T) {
	values := Values{"surname": Text("Silva"), "marital_married": Bool(true)}

	data, err := json.Marshal(values)
	require.NoError(t, err)
	assert.JSONEq(t, `{"surname":"Silva","marital_married":true}`, string(data))

	var decoded Values
	require.NoError(t, json.Unmarshal([]byte(`{"a":"true","b":false}`), &decoded))
	assert.Equal(t, Text("true"), decoded["a"])
	assert.Equal(t, Bool(false), decoded["b"])

	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &decoded))
	assert.Equal(t, []string{"marital_married", "surname"}, values.Names())
}
