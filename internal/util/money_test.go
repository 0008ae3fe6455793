package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{name: "brazilian thousands", input: "1.500,00", want: 1500, ok: true},
		{name: "brazilian no thousands", input: "150,50", want: 150.5, ok: true},
		{name: "thousands only", input: "2.000", want: 2000, ok: true},
		{name: "millions", input: "12.345.678,90", want: 12345678.90, ok: true},
		{name: "us style", input: "1,500.00", want: 1500, ok: true},
		{name: "trailing punctuation", input: "1.500,00.", want: 1500, ok: true},
		{name: "sentinel", input: "0,00", want: 0, ok: true},
		{name: "garbage", input: "1.2.3,4,5", ok: false},
		{name: "empty", input: ".,", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseAmount(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 0.001)
			}
		})
	}
}
