package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Metadata is the provenance side-record written next to every cache entry.
// It is independent of the payload and may be loaded or saved inline, outside
// of any stage.
type Metadata struct {
	ArtifactGenerated time.Time `json:"artifact_generated"`
	RunReference      string    `json:"run_reference"`
	RunUUID           string    `json:"run_uuid"`
	Hostname          string    `json:"hostname"`

	ParamsName   string         `json:"params_name"`
	ParamsHash   string         `json:"params_hash"`
	Params       map[string]any `json:"params,omitempty"`
	RecordName   string         `json:"record_name"`
	Stage        string         `json:"stage"`
	Artifact     string         `json:"artifact"`
	StoreType    string         `json:"store_type"`
	PriorStages  []string       `json:"prior_stages,omitempty"`
	InputRecords []string       `json:"input_records,omitempty"`

	// Extra carries anything a store wants to make available to its own
	// Load later, without a schema.
	Extra map[string]any `json:"extra,omitempty"`
}

// SaveMetadata writes the sidecar record for a key.
func (g *Gateway) SaveMetadata(c *Cacher, key Key, meta *Metadata) error {
	if g.DryCache {
		return nil
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return os.WriteFile(g.metadataPath(c, key), data, 0o644)
}

// LoadMetadata reads the sidecar record for a key. Missing metadata is not an
// error; it returns (nil, nil) so callers can treat it as simply absent.
func (g *Gateway) LoadMetadata(c *Cacher, key Key) (*Metadata, error) {
	data, err := os.ReadFile(g.metadataPath(c, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &IntegrityError{Path: g.metadataPath(c, key), Err: err}
	}
	return &meta, nil
}
