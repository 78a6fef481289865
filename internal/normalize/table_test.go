package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRulesOrder(t *testing.T) {
	var names []string
	for _, r := range DefaultRules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"write_result",
		"iso_date",
		"object_id",
		"number_long",
		"number_long_bare",
		"number_decimal",
		"number_int",
		"timestamp",
		"bin_data",
	}, names)
}

func TestRuleApply(t *testing.T) {
	rules := map[string]Rule{}
	for _, r := range DefaultRules() {
		rules[r.Name] = r
	}

	tests := []struct {
		rule string
		in   string
		want string
	}{
		{"write_result", `WriteResult({ "nRemoved" : 2 })`, `{"$result": "{ \"nRemoved\" : 2 }"}`},
		{"iso_date", `ISODate("2018-03-14T10:22:33.123Z")`, `{"$date": "2018-03-14T10:22:33.123Z"}`},
		{"object_id", `{ "_id" : ObjectId("5aa8f1") }`, `{ "_id" : {"$oid": "5aa8f1"} }`},
		{"object_id", `[ObjectId("a"), ObjectId("b")]`, `[{"$oid": "a"}, {"$oid": "b"}]`},
		{"number_long", `NumberLong("9223372036854775807")`, `{"$numberLong": "9223372036854775807"}`},
		{"number_long_bare", `NumberLong(-3)`, `{"$numberLong": "-3"}`},
		{"number_decimal", `NumberDecimal("1.50")`, `{"$numberDecimal": "1.50"}`},
		{"number_int", `NumberInt(12)`, `12`},
		{"timestamp", `Timestamp(1520000000, 1)`, `{"$timestamp": {"t": 1520000000, "i": 1}}`},
		{"bin_data", `BinData(0,"AQID")`, `{"$binary": "AQID", "$type": "0"}`},
		{"object_id", `no literals here`, `no literals here`},
	}

	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, rules[tt.rule].Apply(tt.in))
		})
	}
}

func TestRuleApplyEscapesCaptures(t *testing.T) {
	r := Rule{Name: "q", Pattern: DefaultRules()[2].Pattern, Template: `{"$oid": "${1}"}`}
	assert.Equal(t, `{"$oid": "a\\b"}`, r.Apply(`ObjectId("a\b")`))
}

func TestRewriteRunsEveryRule(t *testing.T) {
	got := Rewrite(DefaultRules(), `{ "_id" : ObjectId("x"), "n" : NumberInt(3), "l" : NumberLong("4") }`)
	assert.Equal(t, `{ "_id" : {"$oid": "x"}, "n" : 3, "l" : {"$numberLong": "4"} }`, got)
}
