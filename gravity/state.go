package gravity

// Particle lanes are 4 floats wide: positions pack (x, y, z, mass) and
// velocities pack (vx, vy, vz, 0). Mass rides in the position lane so the
// deposit and force passes touch a single buffer per particle.
const laneStride = 4

// pstate holds the double-buffered particle arrays. The integrator reads
// the current buffers and writes the targets; swap flips the roles after
// the step completes, so readers between steps always see a consistent
// pair.
type pstate struct {
	pos [2][]float32
	vel [2][]float32
	cur int
}

func newState(pos, vel []float32) *pstate {
	s := &pstate{}
	s.pos[0] = pos
	s.vel[0] = vel
	s.pos[1] = make([]float32, len(pos))
	s.vel[1] = make([]float32, len(vel))
	return s
}

func (s *pstate) Pos() []float32 { return s.pos[s.cur] }
func (s *pstate) Vel() []float32 { return s.vel[s.cur] }

func (s *pstate) TargetPos() []float32 { return s.pos[1-s.cur] }
func (s *pstate) TargetVel() []float32 { return s.vel[1-s.cur] }

func (s *pstate) Swap() { s.cur = 1 - s.cur }
