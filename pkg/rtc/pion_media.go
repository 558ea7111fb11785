package rtc

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
)

// trackWriter пакетизирует H.264 access unit и пишет в локальный трек
type trackWriter struct {
	track     *webrtc.TrackLocalStaticRTP
	payloader *codecs.H264Payloader
	sequencer rtp.Sequencer
	mtu       uint16
}

func newTrackWriter(track *webrtc.TrackLocalStaticRTP, mtu int) *trackWriter {
	return &trackWriter{
		track:     track,
		payloader: &codecs.H264Payloader{},
		sequencer: rtp.NewRandomSequencer(),
		mtu:       uint16(mtu),
	}
}

// Write реализует MediaWriter. Маркер ставится на последнем фрагменте кадра.
func (w *trackWriter) Write(pt uint8, _ time.Time, rtpTime uint32, data []byte) error {
	payloads := w.payloader.Payload(w.mtu-rtpHeaderSize, data)
	for i, payload := range payloads {
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    pt,
				SequenceNumber: w.sequencer.NextSequenceNumber(),
				Timestamp:      rtpTime,
				Marker:         i == len(payloads)-1,
			},
			Payload: payload,
		}
		if err := w.track.WriteRTP(pkt); err != nil {
			return err
		}
	}
	return nil
}

const rtpHeaderSize = 12

// drainRTCP читает RTCP отправителя, иначе интерсепторы (NACK, отчеты) не работают
func (p *Pion) drainRTCP(sender *webrtc.RTPSender) {
	if sender == nil {
		return
	}
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (p *Pion) rememberSenderSSRC(sender *webrtc.RTPSender, mid Mid) {
	if sender == nil {
		return
	}
	params := sender.GetParameters()
	p.mu.Lock()
	for _, enc := range params.Encodings {
		p.ssrcMids[uint32(enc.SSRC)] = mid
	}
	p.mu.Unlock()
}

func (p *Pion) midForReceiver(receiver *webrtc.RTPReceiver) Mid {
	for _, tr := range p.pc.GetTransceivers() {
		if tr.Receiver() == receiver {
			return Mid(tr.Mid())
		}
	}
	return ""
}

// onTrack собирает входящие RTP пакеты в access unit'ы и публикует MediaData события
func (p *Pion) onTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	mid := p.midForReceiver(receiver)
	codec := track.Codec()
	log := p.log.With(slog.String("mid", string(mid)), slog.String("codec", codec.MimeType))
	log.Info("remote track started", slog.Int("payload_type", int(track.PayloadType())))

	p.mu.Lock()
	p.ssrcMids[uint32(track.SSRC())] = mid
	p.mu.Unlock()

	// Запрашиваем ключевой кадр, чтобы декодер мог начать без ожидания GOP
	err := p.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}})
	if err != nil {
		log.Debug("PLI send failed", slog.String("error", err.Error()))
	}

	if codec.ClockRate == 0 {
		codec.ClockRate = videoClockRate
	}
	sb := samplebuilder.New(p.cfg.MaxLate, &codecs.H264Packet{}, codec.ClockRate)

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("remote track read stopped", slog.String("error", err.Error()))
			}
			return
		}

		sb.Push(pkt)
		for sample := sb.Pop(); sample != nil; sample = sb.Pop() {
			p.enqueueEvent(MediaDataEvent{Data: &MediaData{
				Mid:         mid,
				PayloadType: uint8(track.PayloadType()),
				RTPTime:     sample.PacketTimestamp,
				Network:     time.Now(),
				Data:        sample.Data,
			}})
		}
	}
}

// collectStats превращает отчет GetStats в события статистики
func (p *Pion) collectStats() {
	report := p.pc.GetStats()

	p.mu.Lock()
	mids := make(map[uint32]Mid, len(p.ssrcMids))
	for ssrc, mid := range p.ssrcMids {
		mids[ssrc] = mid
	}
	p.mu.Unlock()

	var peer PeerStats
	for _, s := range report {
		switch st := s.(type) {
		case webrtc.InboundRTPStreamStats:
			p.enqueueEvent(MediaIngressStats{
				Mid:     mids[uint32(st.SSRC)],
				Packets: uint64(st.PacketsReceived),
				Bytes:   uint64(st.BytesReceived),
				Lost:    int64(st.PacketsLost),
				Jitter:  st.Jitter,
			})
		case webrtc.OutboundRTPStreamStats:
			p.enqueueEvent(MediaEgressStats{
				Mid:     mids[uint32(st.SSRC)],
				Packets: uint64(st.PacketsSent),
				Bytes:   uint64(st.BytesSent),
			})
		case webrtc.TransportStats:
			peer.BytesRx += uint64(st.BytesReceived)
			peer.BytesTx += uint64(st.BytesSent)
		case webrtc.ICECandidatePairStats:
			if st.Nominated {
				peer.RTT = st.CurrentRoundTripTime
			}
		}
	}
	p.enqueueEvent(peer)
}
