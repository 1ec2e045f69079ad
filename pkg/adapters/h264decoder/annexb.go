package h264decoder

var startCode = []byte{0, 0, 0, 1}

// avccToAnnexB converts length-prefixed NAL units to start-code-prefixed
// ones. A truncated trailing unit is dropped.
func avccToAnnexB(data []byte, lengthSize int) []byte {
	result := make([]byte, 0, len(data)+16)
	offset := 0
	for offset+lengthSize <= len(data) {
		naluLen := 0
		for i := 0; i < lengthSize; i++ {
			naluLen = naluLen<<8 | int(data[offset+i])
		}
		offset += lengthSize

		if naluLen > len(data)-offset {
			break
		}
		result = append(result, startCode...)
		result = append(result, data[offset:offset+naluLen]...)
		offset += naluLen
	}
	return result
}

// annexBParameterSets joins SPS and PPS units with start codes so they can
// be prepended to key frames.
func annexBParameterSets(sets [][]byte) []byte {
	var out []byte
	for _, s := range sets {
		out = append(out, startCode...)
		out = append(out, s...)
	}
	return out
}
