package catalog

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestResolve_Downloadable(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "downloadable",
		"title": "Sample Pack",
		"downloadableFiles": [
			{"id": "file1", "price": 9.99},
			{"id": "file2", "price": "15.50"}
		]
	}`)

	def, err := Resolve(raw)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if def.Kind != KindDownloadable {
		t.Fatalf("Kind = %q, want %q", def.Kind, KindDownloadable)
	}
	if def.Title != "Sample Pack" {
		t.Fatalf("Title = %q", def.Title)
	}
	if len(def.Prices) != 2 {
		t.Fatalf("len(Prices) = %d, want 2", len(def.Prices))
	}
	if def.Prices["file1"].String() != "9.99" {
		t.Fatalf("price file1 = %s, want 9.99", def.Prices["file1"])
	}
	if def.Prices["file2"].String() != "15.5" {
		t.Fatalf("price file2 = %s, want 15.5", def.Prices["file2"])
	}
}

func TestResolve_Offline(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "offline",
		"title": "Workshop",
		"offlineItems": [{"id": "seat", "price": 100}]
	}`)

	def, err := Resolve(raw)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if def.Kind != KindOffline {
		t.Fatalf("Kind = %q, want %q", def.Kind, KindOffline)
	}
	if def.Prices["seat"].String() != "100" {
		t.Fatalf("price seat = %s, want 100", def.Prices["seat"])
	}
}

func TestResolve_Direct(t *testing.T) {
	raw := json.RawMessage(`{"type": "direct", "title": "Tip Jar", "defaultAmount": 5}`)

	def, err := Resolve(raw)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if def.Kind != KindDirect {
		t.Fatalf("Kind = %q, want %q", def.Kind, KindDirect)
	}
	if !def.DonationEnabled {
		t.Fatalf("direct catalog must accept runtime amounts")
	}
	if def.DefaultAmount == nil || def.DefaultAmount.String() != "5" {
		t.Fatalf("DefaultAmount = %v, want 5", def.DefaultAmount)
	}
	if len(def.Prices) != 0 {
		t.Fatalf("direct catalog must have no fixed prices")
	}
}

func TestResolve_AllInOne(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "allinone",
		"title": "Bundle",
		"components": {
			"downloadable": {"enabled": true, "files": [{"id": "f1", "price": 1.5}]},
			"offline": {"enabled": false, "items": [{"id": "i1", "price": 99}]},
			"donation": {"enabled": true}
		}
	}`)

	def, err := Resolve(raw)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if _, ok := def.Prices["f1"]; !ok {
		t.Fatalf("enabled downloadable component must contribute prices")
	}
	// Выключенный компонент не даёт позиций.
	if _, ok := def.Prices["i1"]; ok {
		t.Fatalf("disabled offline component must not contribute prices")
	}
	if !def.DonationEnabled {
		t.Fatalf("donation component is enabled")
	}
}

func TestResolve_InvalidPayloads(t *testing.T) {
	tests := []struct {
		name string
		raw  json.RawMessage
	}{
		{name: "nil", raw: nil},
		{name: "null", raw: json.RawMessage(`null`)},
		{name: "not an object", raw: json.RawMessage(`[1, 2]`)},
		{name: "unknown type", raw: json.RawMessage(`{"type": "mystery"}`)},
		{name: "missing price", raw: json.RawMessage(`{"type": "downloadable", "downloadableFiles": [{"id": "f1"}]}`)},
		{name: "non-numeric price", raw: json.RawMessage(`{"type": "offline", "offlineItems": [{"id": "i1", "price": "free"}]}`)},
		{name: "bad json", raw: json.RawMessage(`{"type":`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.raw)
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("err = %v, want ErrInvalidCatalog", err)
			}
		})
	}
}
