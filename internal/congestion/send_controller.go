package congestion

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

var debugLogger *zap.Logger

func init() {
	var err error
	debugLogger, err = zap.NewDevelopment()
	if err != nil {
		debugLogger = zap.NewNop()
	}
}

// SetDebugLogger sets the debug logger used at the host-transport boundary.
func SetDebugLogger(logger *zap.Logger) {
	debugLogger = logger
}

// SendController wires the Spline Flow Controller to a host transport: it
// turns packet-sent/ACK/loss notifications into FlowSample calls, and turns
// the FlowController's FlowResult into a congestion window and a pacer rate.
type SendController struct {
	sampler *Sampler
	flow    *FlowController
	pacer   *Pacer

	congestionWindow uint32
	mtu              uint32

	lastMinRTT    uint32
	epoch         uint32
	hostTimeStart time.Time
}

// NewSendController creates a SendController driving a fresh FlowController
// seeded with initialCWND segments and the given MTU as segment size.
func NewSendController(mtu int, initialCWND int, cfg FlowConfig) *SendController {
	if mtu <= 0 {
		mtu = int(MSSDefault)
	}
	if initialCWND <= 0 {
		initialCWND = 10
	}
	return &SendController{
		sampler:          NewSampler(),
		flow:             NewFlowController(uint32(initialCWND), uint32(mtu), cfg),
		pacer:            NewPacer(mtu),
		congestionWindow: uint32(initialCWND) * uint32(mtu),
		mtu:              uint32(mtu),
	}
}

func (sc *SendController) hostTicks(now time.Time) uint32 {
	if sc.hostTimeStart.IsZero() {
		sc.hostTimeStart = now
	}
	return uint32(now.Sub(sc.hostTimeStart).Microseconds())
}

// OnPacketSent is called when a packet is sent.
func (sc *SendController) OnPacketSent(now time.Time, size int, isAppLimited bool) {
	defer func() {
		if r := recover(); r != nil {
			debugLogger.Error("panic in OnPacketSent",
				zap.String("error", fmt.Sprintf("%v", r)),
				zap.Int("size", size))
		}
	}()
	sc.sampler.OnPacketSent(now, size, isAppLimited)
}

// OnAck is called when an ACK is received. caState communicates the host's
// current congestion-avoidance state for the sample.
func (sc *SendController) OnAck(now time.Time, ackedBytes int, rtt time.Duration, bytesInFlight int, caState CAState) {
	defer func() {
		if r := recover(); r != nil {
			debugLogger.Error("panic in OnAck",
				zap.String("error", fmt.Sprintf("%v", r)),
				zap.Int("ackedBytes", ackedBytes),
				zap.Duration("rtt", rtt))
		}
	}()

	rs := sc.sampler.OnAck(now, ackedBytes)

	rttUs := uint32(rtt.Microseconds())
	bif := bytesInFlight
	if bif < 0 {
		bif = 0
	}

	result := sc.flow.OnAck(FlowSample{
		RTTUs:             rttUs,
		DeliveredSegments: uint32(rs.Delivered / int64(sc.mtu)),
		AckedSackedBytes:  uint32(ackedBytes),
		BytesInFlight:     uint32(bif),
		MSS:               sc.mtu,
		CAState:           caState,
		HostTimeTicks:     sc.hostTicks(now),
	})

	cwnd := result.CwndSegments * sc.mtu
	pace := result.PacingRateBps

	if cwnd == 0 {
		debugLogger.Warn("SendController.OnAck: invalid cwnd, using safe default")
		cwnd = sc.mtu * 10
	}
	if pace == 0 {
		debugLogger.Warn("SendController.OnAck: invalid pacing rate, using safe default")
		pace = 1_000_000
	}

	sc.congestionWindow = cwnd
	sc.pacer.SetRate(int64(pace))
}

// OnLoss is called when packet loss is detected.
func (sc *SendController) OnLoss() {
	sc.flow.Event(EventLoss)
}

// OnCwndRestart notifies the controller of a connection idle restart.
func (sc *SendController) OnCwndRestart() {
	sc.flow.Event(EventCwndRestart)
}

// OnRecoveryEnter/OnRecoveryExit mirror the host's recovery state machine.
func (sc *SendController) OnRecoveryEnter() {
	sc.flow.Event(EventRecoveryEnter)
}

func (sc *SendController) OnRecoveryExit() {
	sc.flow.Event(EventRecoveryExit)
}

// CanSend checks if a packet can be sent (pacing + congestion window).
// While the flow controller is in START_PROBE pacing is disabled and only
// the congestion window gates the send.
func (sc *SendController) CanSend(now time.Time, size int) bool {
	if sc.flow.PacingEnabled() && !sc.pacer.Allow(now, size) {
		return false
	}
	return sc.congestionWindow >= uint32(size)
}

// GetCWND returns the current congestion window, in bytes.
func (sc *SendController) GetCWND() uint32 {
	return sc.congestionWindow
}

// GetPacingRate returns the current pacing rate, in bytes per second.
func (sc *SendController) GetPacingRate() int64 {
	return sc.pacer.GetRate()
}

// GetBandwidth returns the current bandwidth estimate, in bytes per second.
func (sc *SendController) GetBandwidth() float64 {
	return float64(sc.flow.bw)
}

// GetMinRTT returns the windowed minimum RTT (the minimum over the current
// min-RTT window).
func (sc *SendController) GetMinRTT() time.Duration {
	return time.Duration(sc.flow.lastMinRTT) * time.Microsecond
}

// GetMode returns the controller's current probe mode as a string.
func (sc *SendController) GetMode() string {
	return sc.flow.ModeNow().String()
}

// GetMetrics returns a point-in-time snapshot of the controller's state.
func (sc *SendController) GetMetrics() SplineMetrics {
	return sc.flow.Snapshot()
}

// SsThresh forwards to the FlowController's ss_thresh query.
func (sc *SendController) SsThresh() uint32 {
	return sc.flow.SsThresh(sc.congestionWindow)
}

// Fork produces an independent SendController for a cloned connection,
// sharing no state with sc.
func (sc *SendController) Fork() *SendController {
	return &SendController{
		sampler:          NewSampler(),
		flow:             sc.flow.Fork(),
		pacer:            NewPacer(int(sc.mtu)),
		congestionWindow: sc.congestionWindow,
		mtu:              sc.mtu,
	}
}
