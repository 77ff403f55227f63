package pcm

// Float32ToInt16 converts normalized float samples (-1..1) to little-endian
// 16-bit signed PCM. Values outside the range are clamped before scaling
// by 32768.
func Float32ToInt16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int32(v * 32768)
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Int16ToFloat32 converts little-endian 16-bit signed PCM bytes to
// normalized float samples. A trailing odd byte is ignored.
func Int16ToFloat32(b []byte) []float32 {
	n := len(b) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(b[i*2]) | int16(b[i*2+1])<<8
		out[i] = float32(s) / 32768
	}
	return out
}
