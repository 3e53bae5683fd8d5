package dbtypes

import (
	"encoding/json"
	"testing"
)

func TestJSONScanAcceptsStringAndBytes(t *testing.T) {
	var fromString JSON
	if err := fromString.Scan(`{"gross":8}`); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if string(fromString) != `{"gross":8}` {
		t.Fatalf("unexpected value %s", fromString)
	}

	src := []byte(`[1,2]`)
	var fromBytes JSON
	if err := fromBytes.Scan(src); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	src[0] = 'x'
	if string(fromBytes) != `[1,2]` {
		t.Fatalf("scan must copy driver bytes, got %s", fromBytes)
	}

	var fromNil JSON = JSON(`{}`)
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if fromNil != nil {
		t.Fatalf("expected nil after scanning NULL")
	}

	if err := fromNil.Scan(42); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestJSONValue(t *testing.T) {
	v, err := JSON(nil).Value()
	if err != nil || v != nil {
		t.Fatalf("expected nil value, got %v %v", v, err)
	}
	v, err = JSON(`[]`).Value()
	if err != nil || v != "[]" {
		t.Fatalf("expected string value, got %v %v", v, err)
	}
}

func TestJSONEmbedsRawBytes(t *testing.T) {
	payload := struct {
		Price JSON `json:"price"`
	}{Price: JSON(`{"gross":"8.00"}`)}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"price":{"gross":"8.00"}}` {
		t.Fatalf("unexpected encoding %s", out)
	}

	var back struct {
		Price JSON `json:"price"`
	}
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(back.Price) != `{"gross":"8.00"}` {
		t.Fatalf("unexpected raw bytes %s", back.Price)
	}
}

func TestJSONIsNull(t *testing.T) {
	if !JSON(nil).IsNull() || !JSON(" null ").IsNull() {
		t.Fatalf("expected null detection")
	}
	if JSON(`[]`).IsNull() {
		t.Fatalf("empty array is not null")
	}
}
