package sqliteutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsurePragmas(t *testing.T) {
	var testCases = []struct {
		description string
		dsn         string
		pragmas     []Pragma
		expect      string
	}{
		{description: "empty", dsn: "", pragmas: []Pragma{WAL()}, expect: ""},
		{description: "memory", dsn: ":memory:", pragmas: []Pragma{WAL()}, expect: ":memory:"},
		{description: "shared memory", dsn: "file:x?mode=memory&cache=shared", pragmas: []Pragma{WAL()}, expect: "file:x?mode=memory&cache=shared"},
		{
			description: "index",
			dsn:         "/tmp/index.sqlite",
			pragmas:     []Pragma{WAL(), BusyTimeout(5000)},
			expect:      "/tmp/index.sqlite?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		},
		{
			description: "existing pragma kept",
			dsn:         "/tmp/index.sqlite?_pragma=busy_timeout(100)",
			pragmas:     []Pragma{BusyTimeout(5000)},
			expect:      "/tmp/index.sqlite?_pragma=busy_timeout(100)",
		},
		{
			description: "read only source",
			dsn:         "file:/data/patients.db",
			pragmas:     []Pragma{BusyTimeout(0), QueryOnly()},
			expect:      "file:/data/patients.db?_pragma=query_only(1)",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expect, EnsurePragmas(testCase.dsn, testCase.pragmas...))
		})
	}
}
