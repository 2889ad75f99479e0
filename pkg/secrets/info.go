package secrets

import (
	"strconv"
	"strings"
)

// SecretInfo is a portable reference to one secret: its name and category,
// optionally the backend mode to resolve it with, and any loader parameters
// that backend needs. It round-trips to and from the compact form
//
//	name=example_pw:category=prod/data:mode=aws:service_name=ssm
//
// with fields rendered in the fixed order name, category, mode (when set),
// then loader parameters in insertion order. Values containing ':' or '='
// cannot be escaped; the round-trip law holds only for values free of those
// characters. SecretInfo performs no validation of its contents; correctness
// is deferred to the backend that resolves it.
type SecretInfo struct {
	Name     string
	Category string
	Mode     string
	Params   []ParamKV
}

// ParamKV is one ordered loader parameter.
type ParamKV struct {
	Key   string
	Value string
}

// ParseSecretInfo parses the compact key=value:key=value form. Keys other
// than name, category and mode are kept, in order, as loader parameters.
func ParseSecretInfo(s string) (SecretInfo, error) {
	var info SecretInfo
	for _, field := range strings.Split(s, ":") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return SecretInfo{}, &FormatError{
				Source: "secret info string",
				Detail: "field " + strconv.Quote(field) + " is not of the form key=value",
			}
		}
		switch key {
		case "name":
			info.Name = value
		case "category":
			info.Category = value
		case "mode":
			info.Mode = value
		default:
			info.Params = append(info.Params, ParamKV{Key: key, Value: value})
		}
	}
	return info, nil
}

// String renders the compact form: name, category, mode when set, then
// loader parameters in insertion order.
func (i SecretInfo) String() string {
	fields := []string{
		"name=" + i.Name,
		"category=" + i.Category,
	}
	if i.Mode != "" {
		fields = append(fields, "mode="+i.Mode)
	}
	for _, p := range i.Params {
		fields = append(fields, p.Key+"="+p.Value)
	}
	return strings.Join(fields, ":")
}

// ParamMap flattens the ordered loader parameters into a Params map for the
// resolution API. Later duplicates win.
func (i SecretInfo) ParamMap() Params {
	if len(i.Params) == 0 {
		return nil
	}
	out := make(Params, len(i.Params))
	for _, p := range i.Params {
		out[p.Key] = p.Value
	}
	return out
}

// Param looks up one loader parameter by key.
func (i SecretInfo) Param(key string) (string, bool) {
	for _, p := range i.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}
