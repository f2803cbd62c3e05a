package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPIN(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  string
		expectErr bool
	}{
		{name: "Four digits", raw: "1234", expected: "1234"},
		{name: "Six digits", raw: "123456", expected: "123456"},
		{name: "Surrounding whitespace", raw: "  98765 \n", expected: "98765"},
		{name: "Leading zeros kept", raw: "0007", expected: "0007"},
		{name: "Too short", raw: "123", expectErr: true},
		{name: "Too long", raw: "1234567", expectErr: true},
		{name: "Letters", raw: "12a4", expectErr: true},
		{name: "Signed number", raw: "-1234", expectErr: true},
		{name: "Decimal", raw: "12.45", expectErr: true},
		{name: "Inner space", raw: "12 34", expectErr: true},
		{name: "Non-ASCII digits", raw: "١٢٣٤", expectErr: true},
		{name: "Empty", raw: "   ", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pin, err := PIN(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, pin)
		})
	}
}

func TestPINName(t *testing.T) {
	assert.Equal(t, "User", PINName(""))
	assert.Equal(t, "Front Door Guest", PINName("  Front   Door\tGuest "))
}
