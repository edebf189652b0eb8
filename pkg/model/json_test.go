package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestJSONMapValueAndScan(t *testing.T) {
	original := JSONMap{"name": "Cement", "allocated_quantity": 20}

	value, err := original.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	data, ok := value.([]byte)
	if !ok {
		t.Fatalf("expected []byte value, got %T", value)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal value error: %v", err)
	}
	if decoded["name"] != "Cement" {
		t.Fatalf("expected name Cement, got %v", decoded["name"])
	}

	var scanned JSONMap
	if err := scanned.Scan(string(data)); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if qty, ok := scanned.Int("allocated_quantity"); !ok || qty != 20 {
		t.Fatalf("expected allocated_quantity 20, got %v", scanned["allocated_quantity"])
	}
}

func TestJSONMapScanNil(t *testing.T) {
	scanned := JSONMap{"stale": true}
	if err := scanned.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if scanned != nil {
		t.Fatalf("expected nil map, got %v", scanned)
	}
	if err := scanned.Scan(42); err == nil {
		t.Fatal("expected error scanning int")
	}
}

func TestJSONMapGormDataType(t *testing.T) {
	if (JSONMap{}).GormDataType() != "json" {
		t.Fatalf("expected json data type")
	}
}

func TestItemOutstandingAndDateKey(t *testing.T) {
	pi := ProjectItem{AllocatedQuantity: 12, ReturnedQuantity: 5}
	if pi.Outstanding() != 7 {
		t.Fatalf("expected outstanding 7, got %d", pi.Outstanding())
	}

	day := ProjectDay{ProjectDate: time.Date(2024, 10, 1, 15, 4, 0, 0, time.UTC)}
	if day.DateKey() != "2024-10-01" {
		t.Fatalf("expected 2024-10-01, got %s", day.DateKey())
	}
}
