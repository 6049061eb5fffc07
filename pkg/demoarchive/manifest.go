package demoarchive

import (
	"encoding/json"

	"github.com/pkg/errors"
)

func decodeManifest(data []byte) (map[string]interface{}, error) {
	manifest := make(map[string]interface{})
	if len(data) == 0 {
		return manifest, nil
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(err, "parse manifest")
	}
	return manifest, nil
}

func encodeManifest(manifest map[string]interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode manifest")
	}
	return data, nil
}
