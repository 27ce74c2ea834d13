package responseformat

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/electrotonic/internal/electrotonic"
)

// Format names an output encoding for a segment table.
type Format string

const (
	FormatTable   Format = "table"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatMsgPack Format = "msgpack"
)

// ParseFormat validates a format name. An empty name selects FormatTable.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatCSV, FormatJSON, FormatMsgPack:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, csv, json or msgpack)", s)
	}
}

// Columns are the table headers, in record field order.
var Columns = []string{
	"start_node",
	"end_node",
	"length (cm)",
	"radii (cm)",
	"surface_area (cm^2)",
	"cross_sectional_area (cm^2)",
	"ri",
	"rm",
	"cm",
}

// Table is the encoded shape of a segment table for JSON and MessagePack.
type Table struct {
	Segments []electrotonic.SegmentRecord `json:"segments"`
	Summary  *electrotonic.Summary        `json:"summary,omitempty"`
}

// Formatter handles encoding and writing segment tables and API responses
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// WriteTable encodes records to w in the requested format. summary may be nil.
func (f *Formatter) WriteTable(w io.Writer, format Format, records []electrotonic.SegmentRecord, summary *electrotonic.Summary) error {
	switch format {
	case FormatTable, "":
		return f.writeText(w, records, summary)
	case FormatCSV:
		return f.writeCSV(w, records)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Table{Segments: records, Summary: summary})
	case FormatMsgPack:
		return encodeMsgPack(w, Table{Segments: records, Summary: summary})
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func (f *Formatter) writeText(w io.Writer, records []electrotonic.SegmentRecord, summary *electrotonic.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for i, c := range Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw, "\t")

	for _, r := range records {
		for i, v := range row(r) {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, v)
		}
		fmt.Fprintln(tw, "\t")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if summary != nil {
		_, err := fmt.Fprintf(w, "\n%s segments, total length %.6g cm, total surface area %.6g cm^2, total capacitance %.6g, mean radius %.6g cm (sd %.3g)\n",
			humanize.Comma(int64(summary.Segments)), summary.TotalLength, summary.TotalSurfaceArea,
			summary.TotalCapacitance, summary.MeanRadius, summary.StdRadius)
		return err
	}
	return nil
}

func (f *Formatter) writeCSV(w io.Writer, records []electrotonic.SegmentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(r electrotonic.SegmentRecord) []string {
	return []string{
		strconv.FormatInt(int64(r.StartNode), 10),
		strconv.FormatInt(int64(r.EndNode), 10),
		formatFloat(r.Length),
		formatFloat(r.Radius),
		formatFloat(r.SurfaceArea),
		formatFloat(r.CrossSectionalArea),
		formatFloat(r.IntracellularResistance),
		formatFloat(r.MembraneResistance),
		formatFloat(r.MembraneCapacitance),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ErrEncoding is returned by WriteResponse when data cannot be encoded.
// Nothing has been written to the client in that case.
var ErrEncoding = errors.New("encoding response")

// WriteResponse writes the response in the appropriate format based on the query parameter
// JSON is the default format. MessagePack is used when format=msgpack is specified
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	var buf bytes.Buffer
	contentType := "application/json"
	var err error
	if req.URL.Query().Get("format") == "msgpack" {
		contentType = "application/x-msgpack"
		err = encodeMsgPack(&buf, data)
	} else {
		err = json.NewEncoder(&buf).Encode(data)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, err = w.Write(buf.Bytes())
	return err
}

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteError writes err with the given status code.
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, err error) error {
	return f.WriteResponse(w, req, status, ErrorBody{Error: err.Error()})
}

func encodeMsgPack(w io.Writer, data any) error {
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}
