package forecast

// Window is one supervised training sample: L consecutive scaled closes and the next one.
type Window struct {
	Features []float64
	Target   float64
}

// BuildWindows slices scaled into stride-1 windows of length lookBack.
func BuildWindows(scaled []float64, lookBack int) ([]Window, error) {
	if lookBack < 1 {
		lookBack = 1
	}
	if len(scaled) <= lookBack {
		return nil, &InsufficientDataError{Required: lookBack + 1, Got: len(scaled)}
	}
	out := make([]Window, 0, len(scaled)-lookBack)
	for i := lookBack; i < len(scaled); i++ {
		out = append(out, Window{
			Features: scaled[i-lookBack : i : i],
			Target:   scaled[i],
		})
	}
	return out, nil
}

// SplitWindows returns a leading training slice and the chronologically last evaluation slice.
// If the ratio would leave nothing to train on, every window trains and evaluation is empty.
func SplitWindows(ws []Window, trainRatio float64) (train, eval []Window) {
	if trainRatio <= 0 || trainRatio > 1 {
		trainRatio = 0.8
	}
	n := int(float64(len(ws)) * trainRatio)
	if n == 0 {
		return ws, nil
	}
	return ws[:n], ws[n:]
}
