package sensor

import "math"

// Dim is the length of every feature vector.
const Dim = 38

// Vector is an L2-normalized feature vector of length Dim.
type Vector []float64

// Encode maps a sanitized frame to its feature vector. It is pure: equal
// frames always produce equal vectors.
func Encode(f Frame) Vector {
	v := make(Vector, Dim)

	df := math.Min(f.Front/MaxDistance, 1)
	dl := math.Min(f.Left/MaxDistance, 1)
	dr := math.Min(f.Right/MaxDistance, 1)

	v[0], v[1], v[2] = df, dl, dr
	v[3] = (df + dl + dr) / 3
	v[4] = math.Min(df, math.Min(dl, dr))
	v[5] = math.Max(df, math.Max(dl, dr))
	v[6] = math.Abs(dl - dr)
	v[7] = flag(df < 0.2)
	v[8] = flag(dl < 0.3 || dr < 0.3)
	v[9] = flag(df > 0.8 && dl > 0.5 && dr > 0.5)

	sl := math.Min(f.SpeedLeft/150, 1)
	sr := math.Min(f.SpeedRight/150, 1)
	v[10], v[11] = sl, sr
	v[12] = (sl + sr) / 2
	v[13] = math.Abs(sl - sr)
	v[14] = flag(sl > 0 && sr > 0)

	// situation flags
	v[20] = flag(df < 0.3)
	v[21] = flag(dl < 0.2 && dr > 0.5)
	v[22] = flag(dr < 0.2 && dl > 0.5)
	v[23] = flag(df < 0.2 && dl < 0.2 && dr < 0.2)
	v[24] = flag(dl > 0.8 && dr > 0.8 && df > 0.5)
	v[25] = flag(dl < 0.4 && dr < 0.4 && df > 0.5)

	// smooth shape features
	v[30] = math.Tanh(df*2 - 1)
	v[31] = math.Tanh((dl - dr) * 2)
	v[32] = 1 / (1 + math.Exp(-5*(df-0.3)))

	return v.Normalized()
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

// Normalized returns a unit-length copy of v, or an all-zero copy when v
// has no length.
func (v Vector) Normalized() Vector {
	out := make(Vector, len(v))
	n := v.Norm()
	if n == 0 || math.IsNaN(n) {
		return out
	}
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

// Scale returns v multiplied by k.
func (v Vector) Scale(k float64) Vector {
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = x * k
	}
	return out
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	return append(Vector(nil), v...)
}

// Cosine returns the cosine similarity of a and b. Mismatched lengths or a
// zero-length operand yield 0.
func Cosine(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(s) {
		return 0
	}
	return s
}
