package postgres

import (
	"encoding/json"
	"testing"
)

func TestRawJSON(t *testing.T) {
	var j RawJSON
	if err := j.Scan(`["a",1]`); err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(struct {
		Args RawJSON `json:"args"`
	}{j})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"args":["a",1]}` {
		t.Errorf("got %s", out)
	}

	if err := j.Scan([]byte(`[]`)); err != nil || string(j) != "[]" {
		t.Errorf("Scan([]byte) = %q, %v", j, err)
	}
	if err := j.Scan(42); err == nil {
		t.Error("expected error for int source")
	}

	var empty RawJSON
	if b, _ := empty.MarshalJSON(); string(b) != "null" {
		t.Errorf("empty MarshalJSON = %s", b)
	}
}
