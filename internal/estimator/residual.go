package estimator

// Params is a point in (R_env, C_in) space.
type Params struct {
	R float64 `json:"r_env"` // K/W
	C float64 `json:"c_in"`  // J/K
}

// heatBalance holds the per-sample terms of
//
//	T_out - T_in = R * (C * dT_in/dt - Q_in)
//
// restricted to the samples used for estimation.
type heatBalance struct {
	y  []float64 // T_out - T_in
	dT []float64 // dT_in/dt, K/s
	q  []float64 // Q_in, W
}

// newHeatBalance selects idx from the full-length series; a nil idx keeps all samples.
func newHeatBalance(tIn, tOut, qIn, dTdt []float64, idx []int) heatBalance {
	if idx == nil {
		y := make([]float64, len(tIn))
		for i := range tIn {
			y[i] = tOut[i] - tIn[i]
		}
		return heatBalance{y: y, dT: dTdt, q: qIn}
	}
	h := heatBalance{
		y:  make([]float64, len(idx)),
		dT: make([]float64, len(idx)),
		q:  make([]float64, len(idx)),
	}
	for k, i := range idx {
		h.y[k] = tOut[i] - tIn[i]
		h.dT[k] = dTdt[i]
		h.q[k] = qIn[i]
	}
	return h
}

func (h heatBalance) len() int { return len(h.y) }

func (h heatBalance) residual(i int, p Params) float64 {
	return h.y[i] - p.R*(p.C*h.dT[i]-h.q[i])
}

// residuals writes into dst (allocating when it is too short) and returns it.
func (h heatBalance) residuals(dst []float64, p Params) []float64 {
	if cap(dst) < h.len() {
		dst = make([]float64, h.len())
	}
	dst = dst[:h.len()]
	for i := range dst {
		dst[i] = h.residual(i, p)
	}
	return dst
}

func (h heatBalance) sse(p Params) float64 {
	var s float64
	for i := range h.y {
		r := h.residual(i, p)
		s += r * r
	}
	return s
}

// gradient returns dSSE/dR and dSSE/dC.
func (h heatBalance) gradient(p Params) (gR, gC float64) {
	for i := range h.y {
		r := h.residual(i, p)
		gR -= 2 * r * (p.C*h.dT[i] - h.q[i])
		gC -= 2 * r * p.R * h.dT[i]
	}
	return gR, gC
}

// Residuals evaluates the heat-balance residual for every sample. All slices
// must have the same length; dTdt is in K/s.
func Residuals(p Params, tIn, tOut, qIn, dTdt []float64) []float64 {
	return newHeatBalance(tIn, tOut, qIn, dTdt, nil).residuals(nil, p)
}

// SSE is the sum of squared heat-balance residuals.
func SSE(p Params, tIn, tOut, qIn, dTdt []float64) float64 {
	return newHeatBalance(tIn, tOut, qIn, dTdt, nil).sse(p)
}
