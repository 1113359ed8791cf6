package artifact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMetadata(t *testing.T) {
	valid := `{
		"version": "20240101T000000.000000000Z-1a2b3c4d",
		"category": "laptop",
		"timestamp": "2024-01-01T00:00:00Z",
		"model_type": "blended_tree_ensemble",
		"metrics": {"r2": -0.2, "mae": 1, "median_ae": 1, "rmse": 2, "mape": 5, "within_10pct": 50, "within_20pct": 70, "within_25pct": 80},
		"feature_names": ["ram_gb"],
		"blend_weights": [{"name": "gbm_deep", "weight": 1}],
		"target_transform": "log1p",
		"checksums": {
			"ensemble.gob.gz": "0000000000000000000000000000000000000000000000000000000000000000",
			"scaler.gob.gz": "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
		}
	}`

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "valid", doc: valid},
		{name: "not json", doc: "{", wantErr: true},
		{name: "empty object", doc: "{}", wantErr: true},
		{name: "unknown category", doc: strings.Replace(valid, `"laptop"`, `"boat"`, 1), wantErr: true},
		{name: "bad checksum", doc: strings.Replace(valid, `"ffff`, `"zzzz`, 1), wantErr: true},
		{name: "weight above one", doc: strings.Replace(valid, `"weight": 1`, `"weight": 1.5`, 1), wantErr: true},
		{name: "unknown transform", doc: strings.Replace(valid, `"log1p"`, `"sqrt"`, 1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMetadata([]byte(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
