package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nvandessel/dksim/internal/simulation"
)

func testTable(t *testing.T, p simulation.Params) *simulation.Table {
	t.Helper()
	tbl, err := simulation.Generate(p)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return tbl
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats() {
		got, err := ParseFormat(string(f))
		if err != nil || got != f {
			t.Errorf("ParseFormat(%q) = %q, %v", f, got, err)
		}
	}

	_, err := ParseFormat("xlsx")
	if !errors.Is(err, simulation.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown format, got %v", err)
	}
}

func TestFormatTraits(t *testing.T) {
	if !FormatArrow.Binary() || FormatCSV.Binary() {
		t.Error("only arrow is binary")
	}
	if !FormatSQLite.NeedsPath() || FormatJSON.NeedsPath() {
		t.Error("only sqlite needs a path")
	}
}

func TestWriteCSV(t *testing.T) {
	tbl := testTable(t, simulation.Params{Correlation: 1, Participants: 4, Seed: 42})

	var buf bytes.Buffer
	if err := Write(&buf, tbl, FormatCSV); err != nil {
		t.Fatalf("Write csv failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header + 4 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(simulation.Columns(), ",") {
		t.Errorf("header = %v", rows[0])
	}
	for i, r := range tbl.Records {
		row := rows[i+1]
		if row[2] != r.TestScoreQuartile.String() || row[3] != r.PerceivedAbilityQuartile.String() {
			t.Errorf("row %d quartiles = %v, want %s/%s", i, row, r.TestScoreQuartile, r.PerceivedAbilityQuartile)
		}
		// Perfect correlation: both percentile columns agree.
		if row[0] != row[1] {
			t.Errorf("row %d percentiles differ at r=1: %v", i, row)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	tbl := testTable(t, simulation.DefaultParams())

	var buf bytes.Buffer
	if err := Write(&buf, tbl, FormatJSON); err != nil {
		t.Fatalf("Write json failed: %v", err)
	}

	var decoded simulation.Table
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Params != tbl.Params {
		t.Errorf("params = %+v, want %+v", decoded.Params, tbl.Params)
	}
	if decoded.Len() != tbl.Len() {
		t.Errorf("records = %d, want %d", decoded.Len(), tbl.Len())
	}
	if !strings.Contains(buf.String(), `"test_score_quartile": "`) {
		t.Error("quartiles should be encoded as labels")
	}
}

func TestWriteTable(t *testing.T) {
	tbl := testTable(t, simulation.Params{Correlation: 0.5, Participants: 8, Seed: 1})

	var buf bytes.Buffer
	if err := Write(&buf, tbl, FormatTable); err != nil {
		t.Fatalf("Write table failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1+1+8 {
		t.Fatalf("expected params + header + 8 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "participants=8") {
		t.Errorf("first line should carry the params, got %q", lines[0])
	}
	for _, col := range simulation.Columns() {
		if !strings.Contains(lines[1], col) {
			t.Errorf("header missing %s: %q", col, lines[1])
		}
	}
}

func TestWrite_Rejects(t *testing.T) {
	tbl := testTable(t, simulation.DefaultParams())

	var buf bytes.Buffer
	if err := Write(&buf, tbl, FormatSQLite); !errors.Is(err, simulation.ErrInvalidArgument) {
		t.Errorf("sqlite is not streamable, got %v", err)
	}
	if err := Write(&buf, nil, FormatCSV); err == nil {
		t.Error("expected error for nil table")
	}
}

func TestArrowRoundTrip(t *testing.T) {
	want := testTable(t, simulation.Params{Correlation: -0.25, Participants: 123, Seed: -7})

	var buf bytes.Buffer
	if err := Write(&buf, want, FormatArrow); err != nil {
		t.Fatalf("Write arrow failed: %v", err)
	}

	got, err := ReadArrow(&buf)
	if err != nil {
		t.Fatalf("ReadArrow failed: %v", err)
	}
	if got.Params != want.Params {
		t.Errorf("params = %+v, want %+v", got.Params, want.Params)
	}
	if got.Len() != want.Len() {
		t.Fatalf("len = %d, want %d", got.Len(), want.Len())
	}
	for i := range want.Records {
		if got.Records[i] != want.Records[i] {
			t.Fatalf("record %d = %+v, want %+v", i, got.Records[i], want.Records[i])
		}
	}
}

func TestArrowSchema(t *testing.T) {
	schema := ArrowSchema(simulation.DefaultParams())

	if schema.NumFields() != 4 {
		t.Fatalf("fields = %d, want 4", schema.NumFields())
	}
	for i, col := range simulation.Columns() {
		if schema.Field(i).Name != col {
			t.Errorf("field %d = %s, want %s", i, schema.Field(i).Name, col)
		}
	}
	md := schema.Metadata()
	if i := md.FindKey(MetaSeed); i < 0 || md.Values()[i] != "42" {
		t.Errorf("seed metadata missing or wrong: %v", md)
	}
}

func TestReadArrow_Garbage(t *testing.T) {
	if _, err := ReadArrow(strings.NewReader("not an arrow stream")); err == nil {
		t.Error("expected error for invalid stream")
	}
}
