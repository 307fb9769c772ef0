package backup

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/kamiai/kamiai/internal/appstate"
	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/datastore"
	"github.com/kamiai/kamiai/internal/session"
)

// BundleVersion is written into every bundle. Imports accept any version
// with the same major number.
const BundleVersion = "1.0.0"

// File name extensions of exported bundles.
const (
	Extension          = ".kami"
	EncryptedExtension = ".kami.enc"
)

// Bundle is a full application image: the application stores plus every
// saved model and training sample. Timestamp is Unix milliseconds.
type Bundle struct {
	Version   string            `json:"version"`
	Timestamp int64             `json:"timestamp"`
	Stores    appstate.Snapshot `json:"stores"`
	Database  Database          `json:"database"`
}

// Database is the repository part of a bundle.
type Database struct {
	Models  []*datastore.SavedModel     `json:"models"`
	Samples []*datastore.TrainingSample `json:"samples"`
}

// Validate checks the bundle shape without touching any state.
func (b *Bundle) Validate() error {
	if b == nil {
		return NewError(ErrValidation, "bundle is empty", nil)
	}
	major, err := majorVersion(b.Version)
	if err != nil {
		return NewError(ErrValidation, "invalid bundle version "+strconv.Quote(b.Version), err)
	}
	want, _ := majorVersion(BundleVersion)
	if major != want {
		return NewError(ErrValidation, "unsupported bundle version "+b.Version, nil)
	}
	if err := b.Stores.Validate(); err != nil {
		return NewError(ErrValidation, "invalid store snapshot", err)
	}

	ids := make(map[string]struct{}, len(b.Database.Models))
	for _, m := range b.Database.Models {
		if m == nil || m.ID == "" {
			return NewError(ErrValidation, "bundle contains a model without id", nil)
		}
		if _, dup := ids[m.ID]; dup {
			return NewError(ErrValidation, "bundle contains model "+m.ID+" twice", nil)
		}
		ids[m.ID] = struct{}{}
		if _, err := session.ParseModuleType(m.Type); err != nil {
			return NewError(ErrValidation, "model "+m.ID+" has an invalid type", err)
		}
		if _, err := classifier.ParseDataset([]byte(m.SerializedDataset)); err != nil {
			return NewError(ErrValidation, "model "+m.ID+" has an invalid dataset", err)
		}
	}
	for _, s := range b.Database.Samples {
		if s == nil || s.ID == "" {
			return NewError(ErrValidation, "bundle contains a sample without id", nil)
		}
		if _, ok := ids[s.ModelID]; !ok {
			return NewError(ErrValidation, "sample "+s.ID+" references unknown model "+s.ModelID, nil)
		}
	}
	return nil
}

// Contents converts the bundle into a repository image.
func (b *Bundle) Contents() datastore.Contents {
	return datastore.Contents{
		Models:   b.Database.Models,
		Samples:  b.Database.Samples,
		Settings: b.Stores.Entries(),
	}
}

func majorVersion(v string) (int, error) {
	head, _, _ := strings.Cut(v, ".")
	return strconv.Atoi(head)
}

// EncodeBundle serializes b as JSON.
func EncodeBundle(b *Bundle) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, NewError(ErrUnknown, "failed to encode bundle", err)
	}
	return data, nil
}

// legacyModels picks the label to vectors map that older bundles store
// under models[].weights.
type legacyModels struct {
	Database struct {
		Models []struct {
			Weights json.RawMessage `json:"weights"`
		} `json:"models"`
	} `json:"database"`
}

// DecodeBundle parses and validates a JSON bundle.
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, NewError(ErrCorruption, "bundle is not valid JSON", err)
	}
	var legacy legacyModels
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, NewError(ErrCorruption, "bundle is not valid JSON", err)
	}
	for i, m := range legacy.Database.Models {
		if i >= len(b.Database.Models) || b.Database.Models[i] == nil {
			break
		}
		if b.Database.Models[i].SerializedDataset == "" && len(m.Weights) > 0 && string(m.Weights) != "null" {
			b.Database.Models[i].SerializedDataset = string(m.Weights)
		}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
