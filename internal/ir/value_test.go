package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIRValue(t *testing.T) {
	v, err := DecodeIRValue([]byte(`{"str":"a,b","n":9007199254740993,"ok":true,"none":null,"list":[1,"x"]}`))
	require.NoError(t, err)

	obj, ok := v.(IRObject)
	require.True(t, ok)
	assert.Equal(t, IRString("a,b"), obj["str"])
	assert.Equal(t, IRInt(9007199254740993), obj["n"], "large ints must not lose precision")
	assert.Equal(t, IRBool(true), obj["ok"])
	assert.Equal(t, IRNull{}, obj["none"])
	assert.Equal(t, IRArray{IRInt(1), IRString("x")}, obj["list"])
}

func TestDecodeIRValueRejectsFloats(t *testing.T) {
	for _, input := range []string{"1.5", "1e3", `{"a":2.0}`} {
		_, err := DecodeIRValue([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestFromNative(t *testing.T) {
	v, err := FromNative(map[string]any{
		"s":    "x",
		"i":    7,
		"f":    float64(3),
		"list": []any{true, nil},
	})
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"s":    IRString("x"),
		"i":    IRInt(7),
		"f":    IRInt(3),
		"list": IRArray{IRBool(true), IRNull{}},
	}, v)

	_, err = FromNative(2.5)
	assert.Error(t, err)

	_, err = FromNative(struct{}{})
	assert.Error(t, err)
}

func TestToNativeRoundTripsThroughFromNative(t *testing.T) {
	original := IRObject{
		"name":  IRString("order"),
		"count": IRInt(3),
		"tags":  IRArray{IRString("a"), IRString("b")},
		"meta":  IRObject{"vip": IRBool(false)},
	}

	back, err := FromNative(ToNative(original))
	require.NoError(t, err)
	assert.Equal(t, original, back)
}

func TestIRObjectJSONUsesSortedKeys(t *testing.T) {
	data, err := json.Marshal(struct {
		Vars IRObject `json:"vars"`
	}{Vars: IRObject{"b": IRInt(1), "a": IRString("x")}})
	require.NoError(t, err)
	assert.Equal(t, `{"vars":{"a":"x","b":1}}`, string(data))
}

func TestIRObjectClone(t *testing.T) {
	orig := IRObject{"a": IRInt(1)}
	clone := orig.Clone()
	clone["b"] = IRInt(2)
	assert.Len(t, orig, 1)
	assert.Len(t, IRObject(nil).Clone(), 0)
}
