package gravity

// kickParams are the integration knobs, captured once per step.
type kickParams struct {
	dt       float32
	keep     float32 // 1 - damping
	maxSpeed float32 // 0 disables the speed clamp
	maxAccel float32 // 0 disables the acceleration clamp
}

// kickDrift advances particle lanes [start, end) from the current buffers
// into the target buffers: clamp acceleration, kick, damp, clamp speed,
// drift. Clamps scale the magnitude and preserve direction. A particle
// with any non-finite position, velocity, acceleration, or mass component
// is copied through unchanged; the return value counts those.
func kickDrift(pos, vel, acc, outPos, outVel []float32, start, end int, p kickParams) int {
	skipped := 0

	for i := start; i < end; i++ {
		o := i * laneStride

		px, py, pz, m := pos[o+0], pos[o+1], pos[o+2], pos[o+3]
		vx, vy, vz := vel[o+0], vel[o+1], vel[o+2]
		ax, ay, az := acc[o+0], acc[o+1], acc[o+2]

		finite := isFinite(px) && isFinite(py) && isFinite(pz) && isFinite(m) &&
			isFinite(vx) && isFinite(vy) && isFinite(vz) &&
			isFinite(ax) && isFinite(ay) && isFinite(az)
		if !finite {
			outPos[o+0], outPos[o+1], outPos[o+2], outPos[o+3] = px, py, pz, m
			outVel[o+0], outVel[o+1], outVel[o+2], outVel[o+3] = vx, vy, vz, vel[o+3]
			skipped++
			continue
		}

		if p.maxAccel > 0 {
			a2 := ax*ax + ay*ay + az*az
			if a2 > p.maxAccel*p.maxAccel {
				s := p.maxAccel * invSqrt(a2)
				ax *= s
				ay *= s
				az *= s
			}
		}

		vx = (vx + ax*p.dt) * p.keep
		vy = (vy + ay*p.dt) * p.keep
		vz = (vz + az*p.dt) * p.keep

		if p.maxSpeed > 0 {
			v2 := vx*vx + vy*vy + vz*vz
			if v2 > p.maxSpeed*p.maxSpeed {
				s := p.maxSpeed * invSqrt(v2)
				vx *= s
				vy *= s
				vz *= s
			}
		}

		outPos[o+0] = px + vx*p.dt
		outPos[o+1] = py + vy*p.dt
		outPos[o+2] = pz + vz*p.dt
		outPos[o+3] = m

		outVel[o+0] = vx
		outVel[o+1] = vy
		outVel[o+2] = vz
		outVel[o+3] = 0
	}

	return skipped
}
