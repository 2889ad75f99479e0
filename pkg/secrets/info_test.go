package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSecretInfo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  SecretInfo
	}{
		{
			name:  "name and category",
			input: "name=example_pw:category=prod",
			want:  SecretInfo{Name: "example_pw", Category: "prod"},
		},
		{
			name:  "with mode",
			input: "name=example_pw:category=prod:mode=aws",
			want:  SecretInfo{Name: "example_pw", Category: "prod", Mode: "aws"},
		},
		{
			name:  "loader params keep insertion order",
			input: "name=x:category=y:mode=aws:service_name=ssm:profile=ci",
			want: SecretInfo{
				Name: "x", Category: "y", Mode: "aws",
				Params: []ParamKV{
					{Key: "service_name", Value: "ssm"},
					{Key: "profile", Value: "ci"},
				},
			},
		},
		{
			name:  "known keys recognized in any position",
			input: "category=prod:name=example_pw",
			want:  SecretInfo{Name: "example_pw", Category: "prod"},
		},
		{
			name:  "empty values allowed",
			input: "name=:category=",
			want:  SecretInfo{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSecretInfo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSecretInfoRejectsBareField(t *testing.T) {
	_, err := ParseSecretInfo("name=x:oops:category=y")

	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Error(), `"oops"`)
}

func TestSecretInfoStringFieldOrder(t *testing.T) {
	info := SecretInfo{
		Name:     "example_pw",
		Category: "prod",
		Mode:     "aws",
		Params: []ParamKV{
			{Key: "service_name", Value: "ssm"},
			{Key: "profile", Value: "ci"},
		},
	}
	assert.Equal(t, "name=example_pw:category=prod:mode=aws:service_name=ssm:profile=ci", info.String())

	// Mode is omitted when unset; name and category always render.
	assert.Equal(t, "name=x:category=", SecretInfo{Name: "x"}.String())
}

func TestSecretInfoRoundTrip(t *testing.T) {
	inputs := []string{
		"name=example_pw:category=prod",
		"name=example_pw:category=prod:mode=aws",
		"name=a:category=b:mode=c:service_name=ssm:profile=ci:region=eu-west-1",
	}
	for _, input := range inputs {
		info, err := ParseSecretInfo(input)
		require.NoError(t, err)
		assert.Equal(t, input, info.String())
	}
}

func TestSecretInfoParamHelpers(t *testing.T) {
	info, err := ParseSecretInfo("name=x:category=y:profile=ci:profile=override")
	require.NoError(t, err)

	// Param returns the first occurrence, ParamMap the last.
	first, ok := info.Param("profile")
	assert.True(t, ok)
	assert.Equal(t, "ci", first)
	assert.Equal(t, Params{"profile": "override"}, info.ParamMap())

	_, ok = info.Param("missing")
	assert.False(t, ok)
	assert.Nil(t, SecretInfo{}.ParamMap())
}
