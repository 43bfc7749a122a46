package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/roach88/contagion/internal/ir"
)

// CSVHeader is the header row written by WriteCSV.
var CSVHeader = []string{"tick", "agent_id", "state", "event", "cause"}

// WriteCSV writes the trace as a table keyed by (tick, agent_id).
// NoCause is written as an empty cell.
func (t *Trace) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range t.Rows() {
		rec := []string{
			strconv.Itoa(r.Tick),
			strconv.Itoa(int(r.Agent)),
			r.State.String(),
			r.Event.String(),
			r.Cause.String(),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV back into a trace. Rows must
// be ordered by (tick, agent_id) with every agent present at every tick.
func ReadCSV(r io.Reader) (*Trace, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, CSVHeader) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return fromRows(rows)
}

func parseRow(rec []string) (Row, error) {
	tick, err := strconv.Atoi(rec[0])
	if err != nil {
		return Row{}, fmt.Errorf("tick: %w", err)
	}
	id, err := strconv.Atoi(rec[1])
	if err != nil {
		return Row{}, fmt.Errorf("agent_id: %w", err)
	}
	state, err := ir.ParseState(rec[2])
	if err != nil {
		return Row{}, err
	}
	event, err := ir.ParseEvent(rec[3])
	if err != nil {
		return Row{}, err
	}
	cause, err := ir.ParseCause(rec[4])
	if err != nil {
		return Row{}, err
	}
	return Row{
		Key:   Key{Tick: tick, Agent: ir.AgentID(id)},
		Entry: Entry{State: state, Event: event, Cause: cause},
	}, nil
}

func fromRows(rows []Row) (*Trace, error) {
	numAgents := 0
	for _, r := range rows {
		if r.Tick != 0 {
			break
		}
		numAgents++
	}
	t := New(numAgents)
	for start := 0; start < len(rows); start += max(numAgents, 1) {
		end := min(start+numAgents, len(rows))
		tick := rows[start].Tick
		entries := make([]Entry, 0, numAgents)
		for i, r := range rows[start:end] {
			if r.Tick != tick || int(r.Agent) != i {
				return nil, fmt.Errorf("row %d: want tick %d agent %d, got tick %d agent %d",
					start+i, tick, i, r.Tick, r.Agent)
			}
			entries = append(entries, r.Entry)
		}
		if err := t.Record(tick, entries); err != nil {
			return nil, err
		}
	}
	return t, nil
}
