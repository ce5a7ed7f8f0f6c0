package datamodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tcs := []struct {
		name     string
		expected string
	}{
		{"Berlin", "berlin"},
		{"Bad Münstereifel", "bad-munstereifel"},
		{"São Paulo", "sao-paulo"},
		{"Tromsø", "tromso"},
		{"Ærøskøbing", "aeroskobing"},
		{"Weißenfels", "weissenfels"},
		{"St. Peter-Ording", "st-peter-ording"},
		{"Köln/Bonn #1", "koln-bonn-1"},
		{"  Llandudno  ", "llandudno"},
		{"a+b#c", "a-b-c"}, // MQTT wildcards must never survive
		{"---", ""},
		{"", ""},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Slugify(tc.name))
		})
	}
}
