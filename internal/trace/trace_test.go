package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contagion/internal/ir"
)

var (
	healthy  = Entry{State: ir.Healthy, Event: ir.Nothing, Cause: ir.NoCause}
	seeded   = Entry{State: ir.Infected, Event: ir.Nothing, Cause: ir.NoCause}
	infected = func(by ir.AgentID) Entry {
		return Entry{State: ir.Infected, Event: ir.Infect, Cause: ir.CausedBy(by)}
	}
	recovered = Entry{State: ir.Healthy, Event: ir.Recover, Cause: ir.NoCause}
)

func sampleTrace(t *testing.T) *Trace {
	t.Helper()
	tr := New(3)
	require.NoError(t, tr.Record(0, []Entry{seeded, infected(0), healthy}))
	require.NoError(t, tr.Record(1, []Entry{recovered, seeded, healthy}))
	return tr
}

func TestRecordAndLookup(t *testing.T) {
	tr := sampleTrace(t)

	assert.Equal(t, 2, tr.Ticks())
	assert.Equal(t, 3, tr.NumAgents())

	e, err := tr.Lookup(0, 1)
	require.NoError(t, err)
	assert.Equal(t, infected(0), e)

	e, err = tr.Lookup(1, 0)
	require.NoError(t, err)
	assert.Equal(t, ir.Recover, e.Event)
	assert.Equal(t, ir.NoCause, e.Cause)
}

func TestLookupMissing(t *testing.T) {
	tr := sampleTrace(t)

	for _, k := range []Key{{Tick: 2, Agent: 0}, {Tick: -1, Agent: 0}, {Tick: 0, Agent: 3}} {
		_, err := tr.Lookup(k.Tick, k.Agent)
		assert.ErrorIs(t, err, ErrMissingEntry, "key %+v", k)
	}
}

func TestRecordRejects(t *testing.T) {
	tr := sampleTrace(t)

	tests := []struct {
		name    string
		tick    int
		entries []Entry
		want    string
	}{
		{name: "duplicate", tick: 1, entries: []Entry{healthy, healthy, healthy}, want: "already recorded"},
		{name: "gap", tick: 3, entries: []Entry{healthy, healthy, healthy}, want: "out of order"},
		{name: "short", tick: 2, entries: []Entry{healthy}, want: "got 1 entries for 3 agents"},
		{name: "invalid", tick: 2, entries: []Entry{healthy, {State: 9}, healthy}, want: "invalid entry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tr.Record(tt.tick, tt.entries)
			var te *TickError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.tick, te.Tick)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, 2, tr.Ticks(), "rejected write must not change the trace")
		})
	}
}

func TestRecordCopiesEntries(t *testing.T) {
	tr := New(1)
	entries := []Entry{healthy}
	require.NoError(t, tr.Record(0, entries))

	entries[0] = seeded
	e, err := tr.Lookup(0, 0)
	require.NoError(t, err)
	assert.Equal(t, healthy, e)
}

func TestInfected(t *testing.T) {
	tr := sampleTrace(t)

	assert.Equal(t, []ir.AgentID{0, 1}, tr.InfectedAt(0))
	assert.Equal(t, []ir.AgentID{1}, tr.FinalInfected())
	assert.Nil(t, tr.InfectedAt(5))
	assert.Nil(t, New(3).FinalInfected())
}

func TestCountEvents(t *testing.T) {
	tr := sampleTrace(t)

	assert.Equal(t, 1, tr.CountEvents(ir.Infect))
	assert.Equal(t, 1, tr.CountEvents(ir.Recover))
	assert.Equal(t, 4, tr.CountEvents(ir.Nothing))
}

func TestRows(t *testing.T) {
	rows := sampleTrace(t).Rows()

	require.Len(t, rows, 6)
	assert.Equal(t, Key{Tick: 0, Agent: 0}, rows[0].Key)
	assert.Equal(t, Key{Tick: 1, Agent: 2}, rows[5].Key)
	assert.Equal(t, infected(0), rows[1].Entry)
}

func TestEqualAndDigest(t *testing.T) {
	a := sampleTrace(t)
	b := sampleTrace(t)

	assert.True(t, a.Equal(b))
	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Len(t, da, 64)

	c := New(3)
	require.NoError(t, c.Record(0, []Entry{seeded, infected(2), healthy}))
	require.NoError(t, c.Record(1, []Entry{recovered, seeded, healthy}))
	assert.False(t, a.Equal(c))
	dc, err := c.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)

	assert.False(t, a.Equal(nil))
	assert.True(t, (*Trace)(nil).Equal(nil))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleTrace(t).WriteCSV(&buf))

	want := strings.Join([]string{
		"tick,agent_id,state,event,cause",
		"0,0,INFECTED,NOTHING,",
		"0,1,INFECTED,INFECT,0",
		"0,2,HEALTHY,NOTHING,",
		"1,0,HEALTHY,RECOVER,",
		"1,1,INFECTED,NOTHING,",
		"1,2,HEALTHY,NOTHING,",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
}

func TestReadCSVRoundTrip(t *testing.T) {
	orig := sampleTrace(t)
	var buf bytes.Buffer
	require.NoError(t, orig.WriteCSV(&buf))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.True(t, orig.Equal(got))
}

func TestReadCSVRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "header", in: "t,a,s,e,c\n"},
		{name: "state", in: "tick,agent_id,state,event,cause\n0,0,SICK,NOTHING,\n"},
		{name: "order", in: "tick,agent_id,state,event,cause\n0,1,HEALTHY,NOTHING,\n"},
		{name: "partial", in: "tick,agent_id,state,event,cause\n0,0,HEALTHY,NOTHING,\n0,1,HEALTHY,NOTHING,\n1,0,HEALTHY,NOTHING,\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}
