package congestion

// Mode is the probe-mode state of a FlowController.
type Mode uint8

const (
	ModeStartProbe Mode = iota
	ModeProbeBW
	ModeProbeRTT
	ModeDrainProbe
)

func (m Mode) String() string {
	switch m {
	case ModeStartProbe:
		return "START_PROBE"
	case ModeProbeBW:
		return "PROBE_BW"
	case ModeProbeRTT:
		return "PROBE_RTT"
	case ModeDrainProbe:
		return "DRAIN_PROBE"
	default:
		return "UNKNOWN"
	}
}

// CAState mirrors the host's congestion-avoidance state machine.
type CAState uint8

const (
	CAOpen CAState = iota
	CARecovery
	CALoss
)

// EventKind enumerates the lifecycle events a host may raise via Event.
type EventKind uint8

const (
	EventCwndRestart EventKind = iota
	EventTxStart
	EventLoss
	EventRecoveryEnter
	EventRecoveryExit
)

// FlowSample is the per-ACK input record passed from host to controller.
type FlowSample struct {
	RTTUs             uint32
	DeliveredSegments uint32
	AckedSackedBytes  uint32
	BytesInFlight     uint32
	MSS               uint32
	CAState           CAState
	HostTimeTicks     uint32
}

// FlowResult is the output of OnAck.
type FlowResult struct {
	CwndSegments  uint32
	PacingRateBps uint64
}

// Compile-time configuration constants, fixed for binary compatibility.
const (
	MaxCwnd       uint32 = 900000
	MaxRTTUs      uint32 = 1000000
	MinRTTUs      uint32 = 1
	MSSDefault    uint32 = 1448
	FixedShift           = 10
	BWScale              = 12
	MinRTTWinSec  uint32 = 10
	minRTTWinTick uint32 = MinRTTWinSec * 1_000_000 // host_time_ticks is assumed to share rtt_us's microsecond unit
	usecPerSec    uint64 = 1_000_000
)

// FlowConfig carries the one deployment-dependent knob: the epoch cap.
// 10 matches the simulator/user-space variants; 4 matches the kernel
// module (see the epoch-rotation note in the design ledger).
type FlowConfig struct {
	EpochCap uint32
}

// DefaultFlowConfig returns the simulator/user-space epoch cap.
func DefaultFlowConfig() FlowConfig {
	return FlowConfig{EpochCap: 10}
}

// FlowController is the per-connection congestion control decision core.
// All state is plain scalars; there is no dynamic allocation after
// construction and no component retains host data past a call boundary.
type FlowController struct {
	cfg         FlowConfig
	initialCwnd uint32

	currCwnd    uint32
	lastCwnd    uint32
	lastMaxCwnd uint32
	priorCwnd   uint32
	minCwnd     uint32

	currRTT         uint32
	lastRTT         uint32
	lastMinRTT      uint32
	lastMinRTTStamp uint32
	rttAvg          uint32

	currAck         uint32
	lastAck         uint32
	lastAckedSacked uint32
	bytesInFlight   uint32
	mss             uint32

	bw         uint64
	lastBw     uint64
	throughput uint64

	fairnessRat uint32
	pacingRate  uint64
	pacingOn    bool

	maxCouldCwnd uint32
	currentMode  Mode

	epp              uint32
	eppMinRTT        uint32
	probeModeEntered bool

	prevCAState CAState

	epsilon uint32
	gamma   uint32
	isLoss  bool

	overloadShortcut bool
	reestimateRate   bool
}

// NewFlowController constructs a Flow Controller seeded with the host's
// initial congestion window and segment size. The initial mode is
// START_PROBE per the data-model invariants.
func NewFlowController(initialCwndSegments, mss uint32, cfg FlowConfig) *FlowController {
	if initialCwndSegments < 1 {
		initialCwndSegments = 1
	}
	if mss == 0 {
		mss = MSSDefault
	}
	if cfg.EpochCap == 0 {
		cfg.EpochCap = DefaultFlowConfig().EpochCap
	}
	return &FlowController{
		cfg:          cfg,
		initialCwnd:  initialCwndSegments,
		currCwnd:     initialCwndSegments,
		lastMaxCwnd:  initialCwndSegments,
		minCwnd:      initialCwndSegments,
		mss:          mss,
		currentMode:  ModeStartProbe,
		prevCAState:  CAOpen,
		maxCouldCwnd: initialCwndSegments,
	}
}

// Fork produces a value-copy of the controller for a clone socket. There is
// no aliasing: every field is plain-old-data.
func (f *FlowController) Fork() *FlowController {
	clone := *f
	return &clone
}

// PriorCWND returns the cwnd snapshot taken on entering recovery, for a host
// that wants to implement TCP's undo_cwnd.
func (f *FlowController) PriorCWND() uint32 {
	return f.priorCwnd
}

// ModeNow returns the controller's current probe mode.
func (f *FlowController) ModeNow() Mode {
	return f.currentMode
}

// PacingEnabled reports whether the host should pace sends. Pacing is off
// while the controller is in START_PROBE and on in every other mode.
func (f *FlowController) PacingEnabled() bool {
	return f.pacingOn
}

// Snapshot returns a SplineMetrics copy of the controller's exported state.
func (f *FlowController) Snapshot() SplineMetrics {
	return SplineMetrics{
		Mode:          f.currentMode.String(),
		CWNDSegments:  f.currCwnd,
		LastMaxCWND:   f.lastMaxCwnd,
		PriorCWND:     f.priorCwnd,
		PacingRateBps: f.pacingRate,
		BandwidthBps:  f.bw,
		FairnessRatio: f.fairnessRat,
		CurrRTTUs:     f.currRTT,
		MinRTTUs:      f.lastMinRTT,
		RTTAvgUs:      f.rttAvg,
		Epsilon:       f.epsilon,
		Gamma:         f.gamma,
		Epoch:         f.epp,
	}
}

// OnAck folds one ACK-processing event through C1 -> C5 and returns the
// updated cwnd and pacing rate. Never fails; malformed inputs are clamped.
func (f *FlowController) OnAck(s FlowSample) FlowResult {
	f.sampleIntake(s)
	f.rateEstimate()
	f.modeArbiter()
	f.windowPolicy()
	f.pacingPolicy()

	if f.currCwnd < f.minCwnd {
		f.currCwnd = f.minCwnd
	}
	if f.currCwnd > MaxCwnd {
		f.currCwnd = MaxCwnd
	}

	return FlowResult{CwndSegments: f.currCwnd, PacingRateBps: f.pacingRate}
}

// SsThresh returns the slow-start threshold the host should use on the next
// loss event.
func (f *FlowController) SsThresh(bytesInFlight uint32) uint32 {
	_ = bytesInFlight
	t := (f.currCwnd * 14) >> 4
	if t < 1 {
		t = 1
	}
	return t
}

// Event applies a host-notified lifecycle event.
func (f *FlowController) Event(kind EventKind) {
	switch kind {
	case EventCwndRestart, EventTxStart:
		f.currCwnd = f.initialCwnd
		f.currentMode = ModeStartProbe
		// last_min_rtt / last_bw are deliberately untouched: they are
		// learned state the host wants preserved across a restart.
	case EventLoss:
		f.prevCAState = CALoss
		f.reestimateRate = true
	case EventRecoveryEnter:
		if f.prevCAState == CAOpen && f.currentMode != ModeProbeRTT {
			f.priorCwnd = f.currCwnd
		} else if f.priorCwnd < f.minCwnd {
			f.priorCwnd = f.minCwnd
		}
		f.prevCAState = CARecovery
	case EventRecoveryExit:
		f.prevCAState = CAOpen
	}
}

// --- C1 Sample Intake -------------------------------------------------

func (f *FlowController) sampleIntake(s FlowSample) {
	mss := s.MSS
	if mss == 0 {
		mss = MSSDefault
	}
	f.mss = mss

	rtt := s.RTTUs
	if rtt == 0 || rtt > MaxRTTUs {
		rtt = MinRTTUs
	}
	f.lastRTT = f.currRTT
	f.currRTT = rtt

	aged := s.HostTimeTicks-f.lastMinRTTStamp > minRTTWinTick
	if f.lastMinRTT == 0 || f.currRTT < f.lastMinRTT || aged {
		f.lastMinRTT = f.currRTT
		f.lastMinRTTStamp = s.HostTimeTicks
		f.eppMinRTT++
	}
	f.rttAvg = (f.lastMinRTT + f.lastRTT) / 2

	f.lastAck = f.currAck
	f.currAck = s.DeliveredSegments
	f.lastAckedSacked = s.AckedSackedBytes
	f.bytesInFlight = s.BytesInFlight

	f.prevCAState = s.CAState
	f.isLoss = f.prevCAState == CALoss && f.currAck < f.lastAck

	if f.currRTT == 0 {
		f.epsilon = 1
	} else {
		f.epsilon = clampU32((f.currRTT+f.lastRTT)/f.currRTT+1, 1, 10)
	}

	if f.currAck > f.lastAck {
		f.gamma = clampU32((f.currAck+f.lastAck)/f.currAck+1, 1, 10)
	} else {
		f.gamma = 1
	}
}

// --- C2 Rate Estimator --------------------------------------------------

func (f *FlowController) rateEstimate() {
	minRTT := f.lastMinRTT
	if minRTT == 0 {
		f.throughput = 0
	} else {
		f.throughput = uint64(f.bytesInFlight) * usecPerSec / uint64(minRTT)
	}

	bwDivisor := minRTT
	if bwDivisor == 0 {
		bwDivisor = MinRTTUs
	}
	bwRaw := uint64(f.currAck) * uint64(f.mss) * usecPerSec / uint64(bwDivisor)

	var newLastBw uint64
	if f.reestimateRate || f.lastBw == 0 {
		newLastBw = bwRaw
		f.reestimateRate = false
	} else {
		newLastBw = (3*f.lastBw + bwRaw) / 4
	}

	bw := bwRaw
	if newLastBw > 0 {
		lowClamp := (newLastBw * 3) >> 2
		if bw < lowClamp {
			bw = lowClamp
		}
		highClamp := (newLastBw * 6) >> 2
		if bw > highClamp {
			bw = highClamp
		}
		if uint64(f.currRTT) > 2*uint64(minRTT) {
			bw = newLastBw
		}
	}

	minBw := uint64(f.mss)
	if bw < minBw {
		bw = minBw
	}
	maxBw := uint64(MaxCwnd) * uint64(f.mss)
	if bw > maxBw {
		bw = maxBw
	}

	f.bw = bw
	f.lastBw = newLastBw

	var fairness uint32
	if f.bytesInFlight == 0 {
		fairness = 2
	} else {
		gamma := uint64(f.currCwnd) * uint64(f.currCwnd) * uint64(f.mss)
		beta := 2 * uint64(f.bytesInFlight) * uint64(f.bytesInFlight)
		if beta == 0 {
			fairness = 2
		} else {
			fairness = uint32(gamma/beta) + 1
		}
	}
	f.fairnessRat = fairness

	f.overloadShortcut = (f.throughput*12)>>4 > f.bw
}

// --- C3 Mode Arbiter ------------------------------------------------------

func (f *FlowController) modeArbiter() {
	if !f.probeModeEntered {
		// One-shot start-up latch: the very first ACK enters START_PROBE
		// and the probing shortcuts do not run against it.
		f.probeModeEntered = true
		f.currentMode = ModeStartProbe
		return
	}

	entryMode := f.currentMode

	drainShortcut := (f.bytesInFlight > f.currAck*f.mss && f.bytesInFlight > f.currCwnd*f.mss) ||
		f.lastAckedSacked < f.mss

	if f.overloadShortcut || drainShortcut {
		f.currentMode = ModeDrainProbe
	} else if entryMode != ModeStartProbe {
		f.currentMode = ModeProbeBW
	}

	if f.currentMode == ModeStartProbe {
		// START_PROBE holds until overload or drain pressure appears; the
		// epoch machinery delimits the probing modes only.
		return
	}

	f.epp++
	if f.epp >= f.cfg.EpochCap {
		f.epp = 0
		if f.eppMinRTT > 0 {
			f.eppMinRTT = 0
			f.currentMode = ModeProbeBW
		} else {
			// Rotation advances from the mode this call entered with, not
			// from the shortcut result, so successive rolls walk the full
			// BW -> RTT -> DRAIN -> START -> BW cycle.
			f.currentMode = nextEpochMode(entryMode)
		}
	}
}

func nextEpochMode(m Mode) Mode {
	switch m {
	case ModeProbeBW:
		return ModeProbeRTT
	case ModeProbeRTT:
		return ModeDrainProbe
	case ModeDrainProbe:
		return ModeStartProbe
	default:
		return ModeProbeBW
	}
}

// --- C4 Window Policy -----------------------------------------------------

func (f *FlowController) windowPolicy() {
	switch f.currentMode {
	case ModeProbeBW:
		f.probeBWWindow()
		f.cwndGainPath()
	case ModeProbeRTT:
		f.probeRTTWindow()
		f.cwndGainPath()
	case ModeDrainProbe:
		f.drainWindow()
	case ModeStartProbe:
		f.startProbeWindow()
	default:
		f.currentMode = ModeProbeBW
		f.probeBWWindow()
		f.cwndGainPath()
	}

	if f.currCwnd < f.minCwnd {
		f.currCwnd = f.minCwnd
	}
	if f.currCwnd > MaxCwnd {
		f.currCwnd = MaxCwnd
	}
	f.lastCwnd = f.currCwnd
	if f.currCwnd > f.lastMaxCwnd {
		f.lastMaxCwnd = f.currCwnd
	}
}

// The four sub-rules are a first-non-zero-wins chain over mutually
// exclusive ranges: Stable takes all of fairness_rat >= 2 (and the
// small-inflight arm), and the fairness_rat < 2 remainder is split
// between Fairness, Overload (loss with inflight over the window) and
// Favorable (epsilon >= 3), so each rule is reachable.

func (f *FlowController) stableRange() bool {
	return f.fairnessRat >= 2 || 2*f.bytesInFlight < f.currCwnd*f.mss
}

func (f *FlowController) overloadRange() bool {
	return f.prevCAState == CALoss && f.bytesInFlight > f.currCwnd*f.mss
}

func (f *FlowController) fairnessRange() bool {
	return f.fairnessRat < 2 && !f.overloadRange() && f.epsilon < 3
}

func (f *FlowController) probeBWWindow() {
	if f.stableRange() {
		f.currCwnd = (f.currCwnd * 18) >> 4
		return
	}
	if f.fairnessRange() {
		f.currCwnd = (f.currCwnd * 8) >> 4
		return
	}
	if f.overloadRange() {
		f.currCwnd = (f.currCwnd * 10) >> 4
		if f.currAck < (f.lastAck*3)>>2 {
			f.currCwnd = (f.currCwnd * 10) >> 4
		}
		return
	}
	if f.epsilon >= 3 {
		f.currCwnd = (f.currCwnd * 3) / 2
	}
}

func (f *FlowController) probeRTTWindow() {
	if f.stableRange() {
		// Stable is a hold in PROBE_RTT: no growth.
		return
	}
	if f.fairnessRange() {
		f.currCwnd = (f.currCwnd * 8) >> 4
		return
	}
	if f.overloadRange() {
		f.currCwnd = (f.currCwnd * 8) >> 4
		if f.currAck < (f.lastAck*3)>>2 {
			f.currCwnd = (f.currCwnd * 8) >> 4
		}
		return
	}
	if f.epsilon >= 3 {
		f.currCwnd = (f.currCwnd * 3) / 2
	}
}

func (f *FlowController) drainWindow() {
	cwndFromBw := uint32(f.bw / uint64(f.mss))
	if f.currCwnd > cwndFromBw {
		f.currCwnd = cwndFromBw
	}
	f.currCwnd = (f.currCwnd * 12) >> 4
}

func (f *FlowController) startProbeWindow() {
	if f.currCwnd > f.lastMaxCwnd && f.lastMaxCwnd > 0 {
		// Defensive clamp carried from the user-space variant: a runaway
		// cwnd above the high-water mark resets to the floor.
		f.currCwnd = f.minCwnd
	}

	f.currCwnd += f.lastAckedSacked / f.mss
	f.computeMaxCouldCwnd()

	if f.isLoss || f.currCwnd > f.bytesInFlight/f.mss {
		f.currCwnd = minU32(f.currCwnd, f.maxCouldCwnd)
	} else {
		f.currCwnd = maxU32(f.currCwnd, f.maxCouldCwnd)
	}
}

// computeMaxCouldCwnd derives the BDP-envelope upper bound on cwnd from
// the residual 2/16 of the bandwidth estimate left after the steady-state
// share, scaled by the fairness coefficient and the min-RTT.
func (f *FlowController) computeMaxCouldCwnd() {
	rtt := f.lastMinRTT
	if rtt == 0 {
		rtt = MinRTTUs
	}
	residual := f.bw - (f.bw*14)>>4
	numerator := uint64(f.fairnessRat) * residual * uint64(rtt)
	bytes := numerator / usecPerSec
	segs := bytes / uint64(f.mss)
	if segs > uint64(MaxCwnd) {
		segs = uint64(MaxCwnd)
	}
	segments := uint32(segs)
	if segments == 0 {
		segments = f.minCwnd
	}
	f.maxCouldCwnd = segments
}

// cwndGainPath re-derives cwnd through the fixed-point gain round-trip
// for PROBE_BW/PROBE_RTT after the sub-rules have run.
func (f *FlowController) cwndGainPath() {
	// The sub-rule result raises the high-water mark before it becomes the
	// gain path's ceiling, so one growth step per ACK survives the clamp.
	if f.currCwnd > f.lastMaxCwnd {
		f.lastMaxCwnd = f.currCwnd
	}

	rtt := f.lastMinRTT
	if rtt == 0 {
		rtt = MinRTTUs
	}
	bdpProxy := f.bw * usecPerSec / uint64(rtt)
	if bdpProxy == 0 {
		bdpProxy = 1
	}

	// Ceiling division keeps the gain >= 1; a truncated-to-zero gain would
	// collapse the window whenever the BDP proxy outruns cwnd << FixedShift.
	cwndGain := ((uint64(f.currCwnd) << FixedShift) + bdpProxy - 1) / bdpProxy
	final := (cwndGain * bdpProxy) >> FixedShift

	var clamped uint32
	if final > uint64(^uint32(0)) {
		clamped = MaxCwnd
	} else {
		clamped = uint32(final)
	}

	if f.isLoss {
		clamped = minU32(clamped, f.maxCouldCwnd)
	} else {
		clamped = maxU32(clamped, f.maxCouldCwnd)
	}
	if f.lastMaxCwnd > 0 {
		clamped = minU32(clamped, f.lastMaxCwnd)
	}
	f.currCwnd = clamped
}

// --- C5 Pacing Policy -------------------------------------------------

func (f *FlowController) pacingPolicy() {
	// The rate is computed in every mode so the host always has a sane
	// value; START_PROBE only clears the pacing flag.
	f.pacingOn = f.currentMode != ModeStartProbe

	rtt := f.lastMinRTT
	if rtt == 0 {
		rtt = uint32(usecPerSec)
	}
	rate := f.bw * uint64(f.fairnessRat) * uint64(rtt) / usecPerSec

	if f.currentMode == ModeProbeRTT {
		rate = (rate * 12) >> 4
	}

	floor := uint64(f.mss)
	if rate < floor {
		rate = floor
	}
	f.pacingRate = rate
}

// --- helpers ------------------------------------------------------------

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
