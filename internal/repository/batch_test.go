package repository

import (
	"strings"
	"testing"
)

func TestInsertSQLShape(t *testing.T) {
	t.Parallel()

	spec := tableSpec{
		name:     "core.messages",
		columns:  []string{"height", "tx_hash", "value"},
		casts:    []string{"", "", "jsonb"},
		conflict: "ON CONFLICT (height, tx_hash) DO NOTHING",
	}

	sql := spec.insertSQL(2)
	want := "INSERT INTO core.messages (height, tx_hash, value) VALUES " +
		"($1, $2, $3::jsonb), ($4, $5, $6::jsonb) " +
		"ON CONFLICT (height, tx_hash) DO NOTHING"
	if sql != want {
		t.Errorf("insertSQL =\n%s\nwant\n%s", sql, want)
	}
}

func TestChunkRowsRespectsParamCap(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cols    int
		maxRows int
		want    int
	}{
		{cols: 10, maxRows: 5000, want: 3000},  // 30000/10
		{cols: 7, maxRows: 1000, want: 1000},   // row cap wins
		{cols: 3, maxRows: 0, want: 5000},      // default row cap
		{cols: 30001, maxRows: 5000, want: 1},  // never below one row
	}
	for _, tc := range cases {
		spec := tableSpec{columns: make([]string, tc.cols), maxRows: tc.maxRows}
		if got := spec.chunkRows(); got != tc.want {
			t.Errorf("chunkRows(cols=%d, maxRows=%d) = %d, want %d", tc.cols, tc.maxRows, got, tc.want)
		}
	}
}

func TestTableSpecsConsistent(t *testing.T) {
	t.Parallel()

	specs := []tableSpec{
		blocksSpec, txsSpec, messagesSpec, eventsSpec, eventAttrsSpec,
		transfersSpec, stakeDelegSpec, stakeDistribSpec, wasmExecsSpec,
		wasmEventsSpec, govProposalsSpec, govDepositsSpec, govVotesSpec,
	}
	for _, s := range specs {
		if len(s.casts) != len(s.columns) {
			t.Errorf("%s: %d casts for %d columns", s.name, len(s.casts), len(s.columns))
		}
		if !strings.HasPrefix(s.conflict, "ON CONFLICT") {
			t.Errorf("%s: missing conflict clause", s.name)
		}
	}
}

func TestSanitizeJSONB(t *testing.T) {
	t.Parallel()

	if got := sanitizeJSONB(nil); got != nil {
		t.Errorf("sanitizeJSONB(nil) = %v", got)
	}
	if got := sanitizeJSONB([]byte(`not json`)); got != nil {
		t.Errorf("sanitizeJSONB(invalid) = %v", got)
	}
	got := sanitizeJSONB([]byte("{\"memo\":\"a\x00b\"}"))
	s, ok := got.(string)
	if !ok {
		t.Fatalf("sanitizeJSONB returned %T", got)
	}
	if s != `{"memo":"ab"}` {
		t.Errorf("null byte survived: %s", s)
	}
}

func TestRangePartitionName(t *testing.T) {
	t.Parallel()

	if got := rangePartitionName("core.blocks", 5_000_000); got != "core.blocks_p5" {
		t.Errorf("rangePartitionName = %q", got)
	}
	if got := hashPartitionName("core.events", 3); got != "core.events_h3" {
		t.Errorf("hashPartitionName = %q", got)
	}
}
