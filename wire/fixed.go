package wire

// Fixed is the wire's signed 24.8 fixed-point number, carried as one
// 32-bit word.
type Fixed int32

func FixedFromFloat64(f float64) Fixed {
	return Fixed(f * 256.0)
}

func (f Fixed) Float64() float64 {
	return float64(f) / 256.0
}
