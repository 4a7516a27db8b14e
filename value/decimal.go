// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package value

import "math/big"

// Decimal is an arbitrary-precision decimal: Coefficient *
// 10^Exponent. On the wire the coefficient takes as many
// signed-magnitude bytes as its value needs, with no fixed-width
// form, and it always decodes into a math/big.Int.
type Decimal struct {
	Coefficient *big.Int
	Exponent    int32
}

// decodeSignedMagnitude interprets b as a big-endian signed-magnitude
// integer: the top bit of the first byte is the sign, the remaining
// bits (across all of b) are the magnitude. This mirrors the
// teacher's ion int decoder (ion.ReadInt), which reads the sign out
// of the top bit of the leading content byte the same way.
func decodeSignedMagnitude(b []byte) *big.Int {
	if len(b) == 0 {
		return new(big.Int)
	}
	neg := b[0]&0x80 != 0
	mag := make([]byte, len(b))
	copy(mag, b)
	mag[0] &= 0x7f
	v := new(big.Int).SetBytes(mag)
	if neg {
		v.Neg(v)
	}
	return v
}

// encodeSignedMagnitude is the inverse of decodeSignedMagnitude: it
// prepends a zero byte when the magnitude's own leading bit would
// otherwise collide with the sign bit.
func encodeSignedMagnitude(v *big.Int) []byte {
	neg := v.Sign() < 0
	mag := new(big.Int).Abs(v)
	b := mag.Bytes()
	if len(b) == 0 || b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	out := make([]byte, len(b))
	copy(out, b)
	if neg {
		out[0] |= 0x80
	}
	return out
}
