package routing

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"net"
	"time"

	"github.com/nerrad567/knxip-core/knx/knxip"
	"github.com/nerrad567/knxip-core/knx/secure"
)

// secureGroupSessionID is the fixed session_id SecureWrapper frames
// use on the multicast group, distinguishing Secure routing from a
// unicast Secure session (spec §4.9).
const secureGroupSessionID = 0x0000

// wrapSecure builds the SecureWrapper envelope around a RoutingIndication
// using the current group timer value as the sequence/timer field, per
// spec §4.9.
func (c *Connection) wrapSecure(st knxip.ServiceType, body knxip.Body) ([]byte, error) {
	plain := knxip.Encode(st, body)

	c.timerMu.Lock()
	t := c.timer.Now(time.Since(c.secureStart))
	c.timerMu.Unlock()

	var seq [6]byte
	putUint48(seq[:], uint64(t.Milliseconds()))

	tag := randomMessageTag()
	nonce := secure.Nonce{Sequence: seq, Serial: secure.XKNXSerial, MsgTag: tag}

	wrapperBodyLen := 16 + len(plain) + 16
	header := knxip.EncodeHeader(knxip.SecureWrapperService, wrapperBodyLen)
	aad := append(append([]byte(nil), header...), uint16Bytes(secureGroupSessionID)...)

	ciphertext, mac, err := secure.EncryptWrapper(c.cfg.Secure.BackboneKey, nonce, aad, plain)
	if err != nil {
		return nil, err
	}

	wrapper := knxip.SecureWrapperBody{
		SessionID:     secureGroupSessionID,
		SequenceInfo:  seq,
		SerialNumber:  secure.XKNXSerial,
		MessageTag:    tag,
		EncryptedData: ciphertext,
		MAC:           mac,
	}
	return knxip.Encode(knxip.SecureWrapperService, wrapper), nil
}

func (c *Connection) handleSecureWrapper(_ knxip.ServiceType, b knxip.Body, _ net.Addr) {
	body, ok := b.(knxip.SecureWrapperBody)
	if !ok {
		return
	}

	rx := time.Duration(uint48(body.SequenceInfo[:])) * time.Millisecond

	c.timerMu.Lock()
	localNow := c.timer.Now(time.Since(c.secureStart))
	outcome := c.timer.Evaluate(localNow, rx)
	if outcome == secure.OutcomeDiscardAndPushUpdate {
		c.timer.SetPendingUpdate(body.MessageTag, body.SerialNumber)
	}
	c.timerMu.Unlock()

	if outcome == secure.OutcomeDiscardAndPushUpdate {
		c.cfg.Logger.Debug("routing: discarding stale SecureWrapper, scheduling update notify")
		return
	}

	wrapperBodyLen := 16 + len(body.EncryptedData) + 16
	header := knxip.EncodeHeader(knxip.SecureWrapperService, wrapperBodyLen)
	aad := append(append([]byte(nil), header...), uint16Bytes(body.SessionID)...)
	nonce := secure.Nonce{Sequence: body.SequenceInfo, Serial: body.SerialNumber, MsgTag: body.MessageTag}

	plain, err := secure.DecryptWrapper(c.cfg.Secure.BackboneKey, nonce, aad, body.EncryptedData, body.MAC)
	if err != nil {
		c.errorsTotal.Add(1)
		c.cfg.Logger.Warn("routing: SecureWrapper MAC verification failed", "error", err)
		return
	}

	inner, innerBody, err := knxip.Decode(plain)
	if err != nil {
		c.errorsTotal.Add(1)
		c.cfg.Logger.Warn("routing: malformed inner frame in SecureWrapper", "error", err)
		return
	}
	if inner != knxip.RoutingIndicationService {
		return
	}
	rib, ok := innerBody.(knxip.RoutingIndicationBody)
	if !ok {
		return
	}
	c.deliverCEMI(rib)

	if outcome == secure.OutcomeAcceptAndReschedule {
		c.reschedulePeriodic()
	}
}

func (c *Connection) handleTimerNotify(_ knxip.ServiceType, b knxip.Body, _ net.Addr) {
	body, ok := b.(knxip.TimerNotifyBody)
	if !ok {
		return
	}

	nonce := secure.Nonce{Sequence: body.TimerValue, Serial: body.SerialNumber, MsgTag: body.MessageTag}
	header := knxip.EncodeHeader(knxip.TimerNotifyService, 30)
	if _, err := secure.DecryptWrapper(c.cfg.Secure.BackboneKey, nonce, header, nil, body.MAC); err != nil {
		c.cfg.Logger.Debug("routing: discarding TimerNotify with bad MAC", "error", err)
		return
	}

	rx := time.Duration(uint48(body.TimerValue[:])) * time.Millisecond

	c.timerMu.Lock()
	localNow := c.timer.Now(time.Since(c.secureStart))
	outcome := c.timer.Evaluate(localNow, rx)
	bootstrapMatch := c.bootstrapTag != 0 && body.MessageTag == c.bootstrapTag && body.SerialNumber != secure.XKNXSerial
	if bootstrapMatch {
		select {
		case c.bootstrapMatched <- struct{}{}:
		default:
		}
	}
	if outcome == secure.OutcomeDiscardAndPushUpdate {
		c.timer.SetPendingUpdate(body.MessageTag, body.SerialNumber)
	}
	c.timerMu.Unlock()

	switch outcome {
	case secure.OutcomeUpdateAndFollow, secure.OutcomeAcceptAndReschedule:
		c.reschedulePeriodic()
	}
}

// runSecureTimer bootstraps the group timer role (timekeeper or
// follower) and then keeps sending periodic and update TimerNotify
// frames for as long as the connection is alive, per spec §4.9.
func (c *Connection) runSecureTimer() {
	defer c.wg.Done()

	c.timerMu.Lock()
	c.bootstrapTag = randomMessageTag()
	c.bootstrapMatched = make(chan struct{}, 1)
	tag := c.bootstrapTag
	wait := c.timer.BootstrapWait()
	c.timerMu.Unlock()

	c.sendTimerNotify(tag)

	bootstrapTimer := time.NewTimer(wait)
	select {
	case <-c.bootstrapMatched:
		c.cfg.Logger.Info("routing: secure group timer synchronized to an existing timekeeper")
	case <-bootstrapTimer.C:
		c.timerMu.Lock()
		if c.timer.Role == secure.RoleUndetermined {
			c.timer.Role = secure.RoleTimekeeper
		}
		c.timerMu.Unlock()
		c.cfg.Logger.Info("routing: no existing secure group timekeeper found, assuming role")
	case <-c.done:
		bootstrapTimer.Stop()
		return
	}
	bootstrapTimer.Stop()

	c.periodicTimer = time.NewTimer(c.nextPeriodicDelay())
	defer c.periodicTimer.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.periodicTimer.C:
			c.sendTimerNotify(randomMessageTag())
			c.periodicTimer.Reset(c.nextPeriodicDelay())
		case <-c.updateRequested():
			c.timerMu.Lock()
			pending := c.timer.Pending
			c.timer.ClearPendingUpdate()
			c.timerMu.Unlock()
			if pending != nil {
				c.sendTimerNotify(pending.MessageTag)
			}
		}
	}
}

// updateRequested polls for a pending update notify; it returns a
// channel that fires almost immediately when one is set, otherwise
// after a full follower/keeper update-window tick, so the select loop
// in runSecureTimer never busy-spins.
func (c *Connection) updateRequested() <-chan time.Time {
	c.timerMu.Lock()
	pending := c.timer.Pending != nil
	delay := c.timer.NextUpdateDelay()
	c.timerMu.Unlock()
	if pending {
		delay = 10 * time.Millisecond
	}
	return time.After(delay)
}

func (c *Connection) nextPeriodicDelay() time.Duration {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	return c.timer.NextPeriodicDelay()
}

func (c *Connection) reschedulePeriodic() {
	if c.periodicTimer == nil {
		return
	}
	c.periodicTimer.Reset(c.nextPeriodicDelay())
}

func (c *Connection) sendTimerNotify(tag uint16) {
	c.timerMu.Lock()
	t := c.timer.Now(time.Since(c.secureStart))
	c.timerMu.Unlock()

	var tv [6]byte
	putUint48(tv[:], uint64(t.Milliseconds()))

	nonce := secure.Nonce{Sequence: tv, Serial: secure.XKNXSerial, MsgTag: tag}
	header := knxip.EncodeHeader(knxip.TimerNotifyService, 30)
	_, mac, err := secure.EncryptWrapper(c.cfg.Secure.BackboneKey, nonce, header, nil)
	if err != nil {
		c.cfg.Logger.Error("routing: failed to compute TimerNotify MAC", "error", err)
		return
	}

	body := knxip.TimerNotifyBody{
		TimerValue:   tv,
		SerialNumber: secure.XKNXSerial,
		MessageTag:   tag,
		MAC:          mac,
	}
	if c.mc == nil {
		return
	}
	if err := c.mc.Send(knxip.Encode(knxip.TimerNotifyService, body), nil); err != nil {
		c.cfg.Logger.Warn("routing: failed to send TimerNotify", "error", err)
	}
}

func randomMessageTag() uint16 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<16))
	if err != nil {
		return uint16(time.Now().UnixNano())
	}
	return uint16(n.Uint64())
}

func putUint48(b []byte, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	copy(b, buf[2:8])
}

func uint48(b []byte) uint64 {
	var buf [8]byte
	copy(buf[2:8], b)
	return binary.BigEndian.Uint64(buf[:])
}

func uint16Bytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}
