package decode

import (
	"reflect"
	"testing"
)

func TestConvertKeys(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		mode string
		want any
	}{
		{
			name: "camel to snake",
			in:   map[string]any{"fromAddress": "a", "toAddress": "b"},
			mode: CaseSnake,
			want: map[string]any{"from_address": "a", "to_address": "b"},
		},
		{
			name: "snake to camel",
			in:   map[string]any{"from_address": "a"},
			mode: CaseCamel,
			want: map[string]any{"fromAddress": "a"},
		},
		{
			name: "at-key preserved",
			in:   map[string]any{"@type": "/cosmos.bank.v1beta1.MsgSend", "fromAddress": "a"},
			mode: CaseSnake,
			want: map[string]any{"@type": "/cosmos.bank.v1beta1.MsgSend", "from_address": "a"},
		},
		{
			name: "nested and lists",
			in: map[string]any{
				"outerField": []any{
					map[string]any{"innerField": "x"},
					"plain",
				},
			},
			mode: CaseSnake,
			want: map[string]any{
				"outer_field": []any{
					map[string]any{"inner_field": "x"},
					"plain",
				},
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ConvertKeys(tc.in, tc.mode)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ConvertKeys() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestConvertKeysRoundTripPreservesLeaves(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"@type":       "/cosmos.gov.v1.MsgVote",
		"proposal_id": "7",
		"options": []any{
			map[string]any{"option_value": "VOTE_OPTION_YES", "weight": "1.0"},
		},
	}
	round := ConvertKeys(ConvertKeys(in, CaseCamel), CaseSnake)
	if !reflect.DeepEqual(round, in) {
		t.Fatalf("round trip changed structure: %#v", round)
	}
}
