// Package servicecodec encodes service lists for column storage.
//
// The encoding must be forward-tolerant (unknown fields are ignored on read)
// and round-trip stable, so that a registry running an older build can still
// decode columns written by a newer one.
package servicecodec

import (
	"encoding/json"

	"discovery/model"
)

// Codec encodes an ordered service list to a single blob and back.
type Codec interface {
	Encode(services []model.Service) ([]byte, error)
	Decode(data []byte) ([]model.Service, error)
}

// JSON encodes the service list as a JSON array. encoding/json ignores
// unknown keys on decode, which gives forward tolerance for free.
type JSON struct{}

func (JSON) Encode(services []model.Service) ([]byte, error) {
	return json.Marshal(services)
}

func (JSON) Decode(data []byte) ([]model.Service, error) {
	var services []model.Service
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, err
	}
	return services, nil
}
