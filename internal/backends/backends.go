// Package backends provides the built-in secret backends (file, env,
// keyring, aws, gcp, azure) and the process-scoped registry that owns one
// resolution server per backend kind.
package backends

import (
	"encoding/json"
	"fmt"

	"github.com/oxsecrets/oxsecrets/pkg/secrets"
)

func paramOr(params secrets.Params, key, fallback string) string {
	if v := params[key]; v != "" {
		return v
	}
	return fallback
}

// decodeBundle parses a remote payload as a flat JSON object of secret
// names to values. The cloud backends share this bundle convention.
func decodeBundle(source, payload string) (map[string]string, error) {
	var bundle map[string]string
	if err := json.Unmarshal([]byte(payload), &bundle); err != nil {
		return nil, &secrets.FormatError{
			Source: source,
			Detail: fmt.Sprintf("expected a flat JSON object of names to string values: %v", err),
		}
	}
	return bundle, nil
}
