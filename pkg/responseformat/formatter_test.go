package responseformat

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/electrotonic/internal/electrotonic"
)

var sampleRecords = []electrotonic.SegmentRecord{
	{
		StartNode:               1,
		EndNode:                 2,
		Length:                  10,
		Radius:                  2,
		SurfaceArea:             125.66,
		CrossSectionalArea:      12.566,
		IntracellularResistance: 211.75,
		MembraneResistance:      0.1655,
		MembraneCapacitance:     100.53,
	},
	{StartNode: 3, EndNode: 2, Length: 0.5, Radius: 0.25},
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "csv": FormatCSV, "json": FormatJSON, "msgpack": FormatMsgPack, "table": FormatTable} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xlsx"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter().WriteTable(&buf, FormatCSV, sampleRecords, nil); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Columns, ",") {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "1" || rows[1][1] != "2" || rows[1][2] != "10" || rows[1][6] != "211.75" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestWriteJSONAndMsgPack(t *testing.T) {
	summary := electrotonic.Summarize(sampleRecords)
	f := NewFormatter()

	var js bytes.Buffer
	if err := f.WriteTable(&js, FormatJSON, sampleRecords, &summary); err != nil {
		t.Fatal(err)
	}
	var decoded Table
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Segments) != 2 || decoded.Summary == nil || decoded.Summary.Segments != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if !strings.Contains(js.String(), `"intracellular_resistance"`) {
		t.Error("json output missing field names")
	}

	var mp bytes.Buffer
	if err := f.WriteTable(&mp, FormatMsgPack, sampleRecords, nil); err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := msgpack.Unmarshal(mp.Bytes(), &generic); err != nil {
		t.Fatal(err)
	}
	if _, ok := generic["segments"]; !ok {
		t.Errorf("msgpack keys = %v", generic)
	}
}

func TestWriteText(t *testing.T) {
	summary := electrotonic.Summarize(sampleRecords)
	var buf bytes.Buffer
	if err := NewFormatter().WriteTable(&buf, FormatTable, sampleRecords, &summary); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "cross_sectional_area (cm^2)") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "2 segments, total length 10.5 cm") {
		t.Errorf("missing summary:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines != 5 {
		t.Errorf("expected 5 lines, got %d:\n%s", lines, out)
	}
}

func TestWriteResponse(t *testing.T) {
	f := NewFormatter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	if err := f.WriteResponse(rec, req, http.StatusOK, Table{Segments: sampleRecords}); err != nil {
		t.Fatal(err)
	}
	if rec.Header().Get("Content-Type") != "application/json" || rec.Code != http.StatusOK {
		t.Errorf("json response: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/runs?format=msgpack", nil)
	if err := f.WriteError(rec, req, http.StatusNotFound, errors.New("run not found")); err != nil {
		t.Fatal(err)
	}
	if rec.Header().Get("Content-Type") != "application/x-msgpack" || rec.Code != http.StatusNotFound {
		t.Errorf("msgpack response: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	var body map[string]string
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] != "run not found" {
		t.Errorf("body = %v, %v", body, err)
	}
}

func TestWriteResponseEncodingFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)

	err := NewFormatter().WriteResponse(rec, req, http.StatusOK, map[string]float64{"radius": math.NaN()})
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("err = %v, expected ErrEncoding", err)
	}
	if rec.Body.Len() != 0 || rec.Header().Get("Content-Type") != "" {
		t.Errorf("nothing should be written on failure, got %q", rec.Body.String())
	}
}
