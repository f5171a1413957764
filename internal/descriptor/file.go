package descriptor

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// fileData is the on-disk layout: parallel lists of encodings and owner ids.
type fileData struct {
	Version   int
	Dim       int
	Encodings [][]float64
	IDs       []string
}

func encodeFile(dim int, entries []Entry) ([]byte, error) {
	file := fileData{
		Version:   constants.DescriptorFileVersion,
		Dim:       dim,
		Encodings: make([][]float64, len(entries)),
		IDs:       make([]string, len(entries)),
	}
	for i, e := range entries {
		file.Encodings[i] = e.Embedding
		file.IDs[i] = e.OwnerID
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&file); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFile(data []byte) (*fileData, error) {
	var file fileData
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if file.Version > constants.DescriptorFileVersion {
		return nil, fmt.Errorf("unsupported file version %d", file.Version)
	}
	if len(file.Encodings) != len(file.IDs) {
		return nil, fmt.Errorf("%d encodings but %d ids", len(file.Encodings), len(file.IDs))
	}

	dim := file.Dim
	for i, enc := range file.Encodings {
		if len(enc) == 0 {
			return nil, fmt.Errorf("empty encoding at %d", i)
		}
		if dim == 0 {
			dim = len(enc)
		}
		if len(enc) != dim {
			return nil, fmt.Errorf("encoding %d has %d dimensions, expected %d", i, len(enc), dim)
		}
		if file.IDs[i] == "" {
			return nil, errors.New("empty owner id")
		}
	}
	file.Dim = dim
	return &file, nil
}
