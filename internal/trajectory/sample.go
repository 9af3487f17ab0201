package trajectory

// Sample keeps every stride-th sample starting at index 0. The result has
// ceil(n/stride) samples and shares no storage with t. No coordinate
// filtering happens here, so counts reflect the raw input.
func Sample(t *Trajectory, stride int) (*Sampled, error) {
	if stride < 1 {
		return nil, &InvalidArgumentError{Name: "stride", Value: stride, Reason: "must be at least 1"}
	}

	n := t.Len()
	out := make([]PositionSample, 0, (n+stride-1)/stride)
	for i := 0; i < n; i += stride {
		out = append(out, t.samples[i])
	}

	return &Sampled{samples: out, stride: stride, sourceLen: n}, nil
}

// NewSampled wraps samples as an already-sampled trajectory with stride 1.
func NewSampled(samples []PositionSample) *Sampled {
	s := clone(samples)
	return &Sampled{samples: s, stride: 1, sourceLen: len(s)}
}
