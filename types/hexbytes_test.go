package types

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/zkmesh/recursion/util"
)

func TestHexBytes(t *testing.T) {
	c := qt.New(t)

	c.Run("Bytes", func(c *qt.C) {
		hb := HexBytes{0x01, 0x02, 0x03}
		out := (&hb).Bytes()
		c.Assert(out, qt.DeepEquals, []byte{0x01, 0x02, 0x03})

		out[0] = 0xFF
		c.Assert(hb[0], qt.Equals, byte(0xFF))
	})

	c.Run("String", func(c *qt.C) {
		testCases := []struct {
			name string
			in   HexBytes
			want string
		}{
			{name: "nil slice", in: nil, want: "0x"},
			{name: "empty", in: HexBytes{}, want: "0x"},
			{name: "non-empty", in: HexBytes{0x00, 0xAB, 0xCD}, want: "0x00abcd"},
		}

		for _, tc := range testCases {
			tc := tc
			c.Run(tc.name, func(c *qt.C) {
				c.Assert((&tc.in).String(), qt.Equals, tc.want)
			})
		}
	})

	c.Run("MarshalJSON", func(c *qt.C) {
		b, err := json.Marshal(HexBytes{0xDE, 0xAD})
		c.Assert(err, qt.IsNil)
		c.Assert(string(b), qt.Equals, `"0xdead"`)

		b, err = json.Marshal(HexBytes{})
		c.Assert(err, qt.IsNil)
		c.Assert(string(b), qt.Equals, `"0x"`)
	})

	c.Run("UnmarshalJSON", func(c *qt.C) {
		testCases := []struct {
			name string
			in   string
			want HexBytes
		}{
			{name: "with prefix", in: `"0xdead"`, want: HexBytes{0xDE, 0xAD}},
			{name: "uppercase prefix", in: `"0Xdead"`, want: HexBytes{0xDE, 0xAD}},
			{name: "without prefix", in: `"dead"`, want: HexBytes{0xDE, 0xAD}},
			{name: "empty", in: `"0x"`, want: HexBytes{}},
		}

		for _, tc := range testCases {
			tc := tc
			c.Run(tc.name, func(c *qt.C) {
				var hb HexBytes
				c.Assert(json.Unmarshal([]byte(tc.in), &hb), qt.IsNil)
				c.Assert(hb, qt.DeepEquals, tc.want)
			})
		}

		c.Run("invalid hex", func(c *qt.C) {
			var hb HexBytes
			c.Assert(json.Unmarshal([]byte(`"0xzz"`), &hb), qt.IsNotNil)
		})

		c.Run("invalid raw bytes", func(c *qt.C) {
			var hb HexBytes
			c.Assert(hb.UnmarshalJSON([]byte(`"0x00`)), qt.ErrorMatches, `invalid JSON string: .*`)
		})

		c.Run("reslices to decoded length", func(c *qt.C) {
			hb := HexBytes{0xAA, 0xBB, 0xCC, 0xDD}
			c.Assert(json.Unmarshal([]byte(`"0x01"`), &hb), qt.IsNil)
			c.Assert(hb, qt.DeepEquals, HexBytes{0x01})
			c.Assert(len(hb), qt.Equals, 1)
		})
	})

	c.Run("roundtrip", func(c *qt.C) {
		in := HexBytes(util.RandomBytes(48))
		b, err := json.Marshal(in)
		c.Assert(err, qt.IsNil)
		var out HexBytes
		c.Assert(json.Unmarshal(b, &out), qt.IsNil)
		c.Assert(out, qt.DeepEquals, in)
	})

	c.Run("HexStringToHexBytes", func(c *qt.C) {
		got, err := HexStringToHexBytes("0xdeadbeef")
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.DeepEquals, HexBytes{0xDE, 0xAD, 0xBE, 0xEF})

		got, err = HexStringToHexBytes("deadbeef")
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.DeepEquals, HexBytes{0xDE, 0xAD, 0xBE, 0xEF})

		_, err = HexStringToHexBytes("0xzz")
		c.Assert(err, qt.ErrorMatches, `invalid hex string .*`)
	})
}
