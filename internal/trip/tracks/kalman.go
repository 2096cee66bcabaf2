package tracks

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// State vector layout: [x, y, vx, vy] in the ego frame, metres and m/s.
const stateDim = 4

// kalman is the constant-velocity filter state of a single track.
type kalman struct {
	x *mat.VecDense
	P *mat.SymDense
}

func newKalman(px, py float64, cfg TrackerConfig) kalman {
	x := mat.NewVecDense(stateDim, []float64{px, py, 0, 0})
	P := mat.NewSymDense(stateDim, nil)
	P.SetSym(0, 0, cfg.InitialPosVariance)
	P.SetSym(1, 1, cfg.InitialPosVariance)
	P.SetSym(2, 2, cfg.InitialVelVariance)
	P.SetSym(3, 3, cfg.InitialVelVariance)
	return kalman{x: x, P: P}
}

func (k kalman) clone() kalman {
	x := mat.VecDenseCopyOf(k.x)
	P := mat.NewSymDense(stateDim, nil)
	P.CopySym(k.P)
	return kalman{x: x, P: P}
}

func (k kalman) position() (float64, float64) {
	return k.x.AtVec(0), k.x.AtVec(1)
}

// egoStep describes how the ego frame moved between two track updates.
type egoStep struct {
	dHeading float64 // radians, counter-clockwise positive
	forward  float64 // metres travelled along the old ego x axis
}

// predict advances the filter by dt seconds with a constant-velocity model:
//
//	x' = F x,  P' = F P Fᵀ + Q
//
// and then, when step is non-nil, re-expresses the state in the new ego
// frame: positions and velocities rotate by -dHeading and the position is
// shifted back by the forward displacement.
func (k kalman) predict(dt float64, cfg TrackerConfig, step *egoStep) kalman {
	F := mat.NewDense(stateDim, stateDim, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	Q := mat.NewDiagDense(stateDim, []float64{
		cfg.ProcessNoisePos, cfg.ProcessNoisePos,
		cfg.ProcessNoiseVel, cfg.ProcessNoiseVel,
	})

	var x mat.VecDense
	x.MulVec(F, k.x)

	var FP, FPFt mat.Dense
	FP.Mul(F, k.P)
	FPFt.Mul(&FP, F.T())
	FPFt.Add(&FPFt, Q)

	if step != nil {
		c, s := math.Cos(step.dHeading), math.Sin(step.dHeading)
		// Rotation by -dHeading applied to both the position and velocity blocks.
		G := mat.NewDense(stateDim, stateDim, []float64{
			c, s, 0, 0,
			-s, c, 0, 0,
			0, 0, c, s,
			0, 0, -s, c,
		})
		var gx mat.VecDense
		gx.MulVec(G, &x)
		gx.SetVec(0, gx.AtVec(0)-step.forward)
		x = gx

		var GP, GPGt mat.Dense
		GP.Mul(G, &FPFt)
		GPGt.Mul(&GP, G.T())
		FPFt = GPGt
	}

	return kalman{x: &x, P: symmetrize(&FPFt)}
}

// update applies a position-only measurement z = (zx, zy) using the Joseph
// form so the covariance stays symmetric positive semi-definite:
//
//	S = H P Hᵀ + R,  K = P Hᵀ S⁻¹
//	x = x + K (z - H x)
//	P = (I - K H) P (I - K H)ᵀ + K R Kᵀ
func (k kalman) update(zx, zy float64, cfg TrackerConfig) (kalman, error) {
	H := mat.NewDense(2, stateDim, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	R := mat.NewDiagDense(2, []float64{cfg.MeasurementNoise, cfg.MeasurementNoise})

	var PHt, S mat.Dense
	PHt.Mul(k.P, H.T())
	S.Mul(H, &PHt)
	S.Add(&S, R)

	var Sinv mat.Dense
	if err := Sinv.Inverse(&S); err != nil {
		return k, err
	}
	var K mat.Dense
	K.Mul(&PHt, &Sinv)

	innov := mat.NewVecDense(2, []float64{zx - k.x.AtVec(0), zy - k.x.AtVec(1)})
	var corr, x mat.VecDense
	corr.MulVec(&K, innov)
	x.AddVec(k.x, &corr)

	var KH, IKH mat.Dense
	KH.Mul(&K, H)
	IKH.Sub(eye(stateDim), &KH)

	var tmp, joseph, KR, KRKt mat.Dense
	tmp.Mul(&IKH, k.P)
	joseph.Mul(&tmp, IKH.T())
	KR.Mul(&K, R)
	KRKt.Mul(&KR, K.T())
	joseph.Add(&joseph, &KRKt)

	return kalman{x: &x, P: symmetrize(&joseph)}, nil
}

func (k kalman) finite() bool {
	for i := 0; i < stateDim; i++ {
		if v := k.x.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		for j := i; j < stateDim; j++ {
			if v := k.P.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func eye(n int) *mat.DiagDense {
	d := make([]float64, n)
	for i := range d {
		d[i] = 1
	}
	return mat.NewDiagDense(n, d)
}

// symmetrize returns (M + Mᵀ)/2, discarding round-off asymmetry.
func symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s
}
