package generators

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// PeriodogramParams configures power spectra along the sample (last) axis.
type PeriodogramParams struct {
	Source      string `mapstructure:"source"`
	Length      int    `mapstructure:"length"`
	HalfOverlap *bool  `mapstructure:"half_overlap"`
	MeanRemove  *bool  `mapstructure:"mean_remove"`
}

type periodogramGenerator struct {
	source      string
	length      int
	halfOverlap bool
	meanRemove  bool
}

// NewPeriodogram builds a periodogram generator from kind params.
// Length 0 uses the whole series as one segment.
func NewPeriodogram(kind domain.Kind) (ports.Generator, error) {
	var p PeriodogramParams
	if err := decode(kind, &p); err != nil {
		return nil, err
	}
	if p.Length < 0 {
		return nil, fmt.Errorf("negative periodogram length %d", p.Length)
	}
	g := &periodogramGenerator{source: p.Source, length: p.Length, halfOverlap: true, meanRemove: true}
	if p.HalfOverlap != nil {
		g.halfOverlap = *p.HalfOverlap
	}
	if p.MeanRemove != nil {
		g.meanRemove = *p.MeanRemove
	}
	return g, nil
}

func (g *periodogramGenerator) Generate(ctx context.Context, in ports.Inputs) (domain.Array, error) {
	src, err := source(ctx, in, g.source)
	if err != nil {
		return domain.Array{}, err
	}
	total := src.Samples()
	length := g.length
	if length == 0 {
		length = total
	}
	if length < 2 {
		return domain.Array{}, fmt.Errorf("periodogram length %d too short", length)
	}
	if length > total {
		return domain.Array{}, fmt.Errorf("periodogram cannot be longer than data: data=%d, periodogram=%d", total, length)
	}

	starts := segments(length, total, g.halfOverlap)
	window := blackman(length)
	var norm float64
	for _, w := range window {
		norm += w * w
	}
	norm *= float64(len(starts)) * float64(length)

	series := total
	rows := src.Size() / series
	shape := append(append([]int(nil), src.Shape[:len(src.Shape)-1]...), length)
	out := domain.NewArray(shape...)
	buf := make([]complex128, length)

	for r := 0; r < rows; r++ {
		if err := ctx.Err(); err != nil {
			return domain.Array{}, err
		}
		x := src.Data[r*series : (r+1)*series]
		var mean float64
		if g.meanRemove {
			for _, v := range x {
				mean += v
			}
			mean /= float64(series)
		}
		psd := out.Data[r*length : (r+1)*length]
		for _, s := range starts {
			for i := 0; i < length; i++ {
				buf[i] = complex((x[s+i]-mean)*window[i], 0)
			}
			spec := dft(buf)
			for i, c := range spec {
				a := cmplx.Abs(c)
				psd[i] += a * a
			}
		}
		for i := range psd {
			psd[i] /= norm
		}
		fftshift(psd)
	}

	for _, v := range out.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.Array{}, fmt.Errorf("non-finite periodogram output")
		}
	}
	return out, nil
}

// segments returns the start index of each segment.
func segments(length, total int, halfOverlap bool) []int {
	step, n := length, total/length
	if halfOverlap && length >= 2 {
		step = length / 2
		n = total/step - 1
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i*step+length > total {
			break
		}
		out = append(out, i*step)
	}
	return out
}

// blackman is w(x) = 0.42 - 0.5 cos(2πx/(l-1)) + 0.08 cos(4πx/(l-1)).
func blackman(l int) []float64 {
	w := make([]float64, l)
	d := float64(l - 1)
	for i := range w {
		x := float64(i)
		w[i] = 0.42 - 0.5*math.Cos(2*math.Pi*x/d) + 0.08*math.Cos(4*math.Pi*x/d)
	}
	return w
}

// dft uses a radix-2 FFT when len(x) is a power of two, else the direct sum.
func dft(x []complex128) []complex128 {
	n := len(x)
	if n&(n-1) == 0 {
		return fft(x)
	}
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var sum complex128
		for t := 0; t < n; t++ {
			sum += x[t] * cmplx.Rect(1, -2*math.Pi*float64(k*t)/float64(n))
		}
		out[k] = sum
	}
	return out
}

func fft(x []complex128) []complex128 {
	n := len(x)
	if n == 1 {
		return []complex128{x[0]}
	}
	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = x[2*i]
		odd[i] = x[2*i+1]
	}
	e, o := fft(even), fft(odd)
	out := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		t := cmplx.Rect(1, -2*math.Pi*float64(k)/float64(n)) * o[k]
		out[k] = e[k] + t
		out[k+n/2] = e[k] - t
	}
	return out
}

// fftshift moves the zero-frequency bin to the centre.
func fftshift(x []float64) {
	n := len(x)
	shift := n / 2
	tmp := append([]float64(nil), x...)
	for i := range x {
		x[(i+shift)%n] = tmp[i]
	}
}
