package taskqueue

import (
	"github.com/petrijr/taskflow/internal/persistence"
	"github.com/petrijr/taskflow/pkg/api"
)

// EncodeRequest gob-encodes a Request. Values inside its State follow the
// same registration rules as stored runs.
func EncodeRequest(r Request) ([]byte, error) {
	return persistence.EncodeValue(r)
}

// DecodeRequest gob-decodes a Request.
func DecodeRequest(data []byte) (*Request, error) {
	r, err := persistence.DecodeValue[Request](data)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func encodeState(s api.State) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return persistence.EncodeValue(s)
}

func decodeState(data []byte) (api.State, error) {
	return persistence.DecodeValue[api.State](data)
}
