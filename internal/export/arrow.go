package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/nvandessel/dksim/internal/simulation"
)

// Schema metadata keys carrying the run parameters.
const (
	MetaCorrelation  = "dksim.correlation"
	MetaParticipants = "dksim.participants"
	MetaSeed         = "dksim.seed"
)

// ArrowSchema returns the Arrow schema of a table generated with p.
func ArrowSchema(p simulation.Params) *arrow.Schema {
	md := arrow.NewMetadata(
		[]string{MetaCorrelation, MetaParticipants, MetaSeed},
		[]string{
			strconv.FormatFloat(p.Correlation, 'g', -1, 64),
			strconv.Itoa(p.Participants),
			strconv.FormatInt(p.Seed, 10),
		},
	)
	return arrow.NewSchema([]arrow.Field{
		{Name: simulation.ColumnTestScorePercentile, Type: arrow.PrimitiveTypes.Int64},
		{Name: simulation.ColumnPerceivedAbilityPercentile, Type: arrow.PrimitiveTypes.Int64},
		{Name: simulation.ColumnTestScoreQuartile, Type: arrow.BinaryTypes.String},
		{Name: simulation.ColumnPerceivedAbilityQuartile, Type: arrow.BinaryTypes.String},
	}, &md)
}

// WriteArrow writes the table as a single-batch Arrow IPC stream.
func WriteArrow(w io.Writer, t *simulation.Table) error {
	mem := memory.NewGoAllocator()
	schema := ArrowSchema(t.Params)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	ts := b.Field(0).(*array.Int64Builder)
	pa := b.Field(1).(*array.Int64Builder)
	tsQ := b.Field(2).(*array.StringBuilder)
	paQ := b.Field(3).(*array.StringBuilder)

	n := t.Len()
	ts.Reserve(n)
	pa.Reserve(n)
	for _, r := range t.Records {
		ts.Append(int64(r.TestScorePercentile))
		pa.Append(int64(r.PerceivedAbilityPercentile))
		tsQ.Append(r.TestScoreQuartile.String())
		paQ.Append(r.PerceivedAbilityQuartile.String())
	}

	rec := b.NewRecord()
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		iw.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("close arrow stream: %w", err)
	}
	return nil
}

// ReadArrow reads a stream written by WriteArrow back into a table.
func ReadArrow(r io.Reader) (*simulation.Table, error) {
	mem := memory.NewGoAllocator()
	ir, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("open arrow stream: %w", err)
	}
	defer ir.Release()

	t := &simulation.Table{}
	if t.Params, err = paramsFromMetadata(ir.Schema().Metadata()); err != nil {
		return nil, err
	}

	for ir.Next() {
		rec := ir.Record()
		if rec.NumCols() != 4 {
			return nil, fmt.Errorf("arrow record has %d columns, want 4", rec.NumCols())
		}
		ts, ok1 := rec.Column(0).(*array.Int64)
		pa, ok2 := rec.Column(1).(*array.Int64)
		tsQ, ok3 := rec.Column(2).(*array.String)
		paQ, ok4 := rec.Column(3).(*array.String)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, fmt.Errorf("arrow record has unexpected column types: %s", rec.Schema())
		}
		for i := 0; i < int(rec.NumRows()); i++ {
			var out simulation.Record
			out.TestScorePercentile = int(ts.Value(i))
			out.PerceivedAbilityPercentile = int(pa.Value(i))
			if out.TestScoreQuartile, err = simulation.ParseQuartile(tsQ.Value(i)); err != nil {
				return nil, err
			}
			if out.PerceivedAbilityQuartile, err = simulation.ParseQuartile(paQ.Value(i)); err != nil {
				return nil, err
			}
			t.Records = append(t.Records, out)
		}
	}
	if err := ir.Err(); err != nil {
		return nil, fmt.Errorf("read arrow stream: %w", err)
	}
	return t, nil
}

func paramsFromMetadata(md arrow.Metadata) (simulation.Params, error) {
	get := func(key string) (string, error) {
		i := md.FindKey(key)
		if i < 0 {
			return "", fmt.Errorf("arrow schema is missing metadata %q", key)
		}
		return md.Values()[i], nil
	}

	var p simulation.Params
	s, err := get(MetaCorrelation)
	if err != nil {
		return p, err
	}
	if p.Correlation, err = strconv.ParseFloat(s, 64); err != nil {
		return p, fmt.Errorf("parse %s: %w", MetaCorrelation, err)
	}
	if s, err = get(MetaParticipants); err != nil {
		return p, err
	}
	if p.Participants, err = strconv.Atoi(s); err != nil {
		return p, fmt.Errorf("parse %s: %w", MetaParticipants, err)
	}
	if s, err = get(MetaSeed); err != nil {
		return p, err
	}
	if p.Seed, err = strconv.ParseInt(s, 10, 64); err != nil {
		return p, fmt.Errorf("parse %s: %w", MetaSeed, err)
	}
	return p, nil
}
