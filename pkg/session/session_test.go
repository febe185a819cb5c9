// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/Thermoquad/necscope/pkg/capture"
	"github.com/Thermoquad/necscope/pkg/nec"
)

func synthFrame(protocol nec.ProtocolConfig, addr, cmd uint32, start uint64) ([]capture.Sample, uint64) {
	opts := capture.DefaultSynthOptions()
	opts.StartUsecs = start
	samples, end, err := capture.SynthesizeFrame(&protocol, addr, cmd, opts)
	Expect(err).NotTo(HaveOccurred())
	return samples, end
}

// expectSamples makes src return samples in order, then io.EOF
func expectSamples(src *MockSource, samples []capture.Sample) {
	i := 0
	src.EXPECT().Next().DoAndReturn(func() (capture.Sample, error) {
		if i >= len(samples) {
			return capture.Sample{}, io.EOF
		}
		s := samples[i]
		i++
		return s, nil
	}).AnyTimes()
}

var _ = Describe("Session", func() {
	var (
		mockCtrl *gomock.Controller
		src      *MockSource
		protocol nec.ProtocolConfig
		frames   []*nec.Frame
		errs     []error
		sess     *Session
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		src = NewMockSource(mockCtrl)

		var err error
		protocol, err = nec.LookupProtocol(nec.ProtocolNEC32)
		Expect(err).NotTo(HaveOccurred())

		frames = nil
		errs = nil
		sess, err = New(protocol, nec.DefaultPlatform(),
			WithLogger(log.New(GinkgoWriter, "", 0)),
			WithFrameHandler(func(f *nec.Frame) { frames = append(frames, f) }),
			WithErrorHandler(func(err error) { errs = append(errs, err) }))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should reject an invalid protocol", func() {
		bad := protocol
		bad.OnePeriodUsecs = bad.ZeroPeriodUsecs
		_, err := New(bad, nec.DefaultPlatform())
		Expect(errors.Is(err, nec.ErrInvalidProtocol)).To(BeTrue())
	})

	It("should give every session a unique ID", func() {
		other, err := New(protocol, nec.DefaultPlatform())
		Expect(err).NotTo(HaveOccurred())
		Expect(other.ID()).NotTo(Equal(sess.ID()))
	})

	Context("decoding a single frame", func() {
		It("should decode address and command", func() {
			samples, _ := synthFrame(protocol, 0x00FF, 0x10EF, 5000)
			expectSamples(src, samples)

			frame, err := sess.DecodeOne(context.Background(), src)

			Expect(err).NotTo(HaveOccurred())
			Expect(frame.Address).To(Equal(uint32(0x00FF)))
			Expect(frame.Command).To(Equal(uint32(0x10EF)))
			Expect(frame.String()).To(Equal("addr: 0xFF, cmd: 0x10EF"))
			Expect(frames).To(ConsistOf(frame))
			Expect(sess.Stage()).To(Equal(nec.StageIdle))

			snap := sess.Stats().Snapshot()
			Expect(snap.TotalFrames).To(Equal(uint64(1)))
			Expect(snap.DecodeErrors).To(BeZero())
			Expect(snap.TotalSamples).To(BeNumerically(">", 100))
			Expect(snap.TotalSamples).To(BeNumerically("<", uint64(len(samples))))
		})

		It("should stop at the first decode error", func() {
			expectSamples(src, []capture.Sample{
				{Level: false, TimestampUsecs: 0},
				{Level: true, TimestampUsecs: 100},
				{Level: false, TimestampUsecs: 3000},
			})

			frame, err := sess.DecodeOne(context.Background(), src)

			Expect(frame).To(BeNil())
			Expect(errors.Is(err, nec.ErrPulseTooShort)).To(BeTrue())
			Expect(errs).To(HaveLen(1))
			Expect(sess.Stage()).To(Equal(nec.StageIdle))

			snap := sess.Stats().Snapshot()
			Expect(snap.DecodeErrors).To(Equal(uint64(1)))
			Expect(snap.ErrorsByKind).To(HaveKeyWithValue("PULSE_TOO_SHORT", uint64(1)))
			Expect(snap.ErrorsByStage).To(HaveKeyWithValue("START_SYMBOL", uint64(1)))
		})

		It("should wrap source errors", func() {
			src.EXPECT().Next().Return(capture.Sample{}, errors.New("port gone"))

			_, err := sess.DecodeOne(context.Background(), src)

			Expect(err).To(MatchError("sample source: port gone"))
			Expect(errs).To(BeEmpty())
		})

		It("should return io.EOF when the source runs dry mid-frame", func() {
			samples, _ := synthFrame(protocol, 1, 2, 0)
			expectSamples(src, samples[:len(samples)/2])

			_, err := sess.DecodeOne(context.Background(), src)

			Expect(err).To(Equal(io.EOF))
			Expect(sess.Stage()).To(Or(Equal(nec.StageAddr), Equal(nec.StageCmd)))
		})

		It("should give up when the context is done", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := sess.DecodeOne(ctx, src)

			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Context("decoding continuously", func() {
		It("should restart from idle after an error", func() {
			first, end := synthFrame(protocol, 0x1111, 0x2222, 0)
			glitch := []capture.Sample{
				{Level: true, TimestampUsecs: end + 100},
				{Level: false, TimestampUsecs: end + 600},
				{Level: false, TimestampUsecs: end + 2000},
			}
			second, _ := synthFrame(protocol, 0x3333, 0x4444, end+5000)

			var samples []capture.Sample
			samples = append(samples, first...)
			samples = append(samples, glitch...)
			samples = append(samples, second...)
			expectSamples(src, samples)

			var teed int
			sess.onSample = func(capture.Sample) { teed++ }

			Expect(sess.Run(context.Background(), src)).To(Succeed())

			Expect(frames).To(HaveLen(2))
			Expect(frames[0].Address).To(Equal(uint32(0x1111)))
			Expect(frames[1].Command).To(Equal(uint32(0x4444)))
			Expect(errs).To(HaveLen(1))
			Expect(errors.Is(errs[0], nec.ErrPulseTooShort)).To(BeTrue())
			Expect(teed).To(Equal(len(samples)))

			snap := sess.Stats().Snapshot()
			Expect(snap.TotalFrames).To(Equal(uint64(2)))
			Expect(snap.TotalSamples).To(Equal(uint64(len(samples))))
			Expect(snap.LastFrame).To(Equal(frames[1]))
		})

		It("should log errors when no handler is set", func() {
			var buf strings.Builder
			quiet, err := New(protocol, nec.DefaultPlatform(), WithLogger(log.New(&buf, "", 0)))
			Expect(err).NotTo(HaveOccurred())

			expectSamples(src, []capture.Sample{
				{Level: true, TimestampUsecs: 0},
				{Level: false, TimestampUsecs: 100},
			})
			Expect(quiet.Run(context.Background(), src)).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("decode error: pulse too short in START_SYMBOL after 100 us"))
			Expect(buf.String()).To(ContainSubstring(quiet.ID().String()))
		})

		It("should stop on source errors", func() {
			src.EXPECT().Next().Return(capture.Sample{}, errors.New("read failed"))

			err := sess.Run(context.Background(), src)

			Expect(err).To(MatchError(ContainSubstring("read failed")))
		})

		It("should stop when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			samples, _ := synthFrame(protocol, 0x1, 0x2, 0)
			i := 0
			src.EXPECT().Next().DoAndReturn(func() (capture.Sample, error) {
				if i == 50 {
					cancel()
				}
				s := samples[i]
				i++
				return s, nil
			}).Times(51)

			err := sess.Run(ctx, src)

			Expect(err).To(MatchError(context.Canceled))
			Expect(sess.Stage()).To(Equal(nec.StageIdle))
		})
	})
})

var _ = Describe("PollingSource", func() {
	var (
		mockCtrl *gomock.Controller
		pin      *MockPin
		clock    *MockClock
		src      *PollingSource
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		pin = NewMockPin(mockCtrl)
		clock = NewMockClock(mockCtrl)
		src = NewPollingSource(pin, clock)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should timestamp each pin read", func() {
		gomock.InOrder(
			clock.EXPECT().NowUsecs().Return(uint64(100)),
			pin.EXPECT().Level().Return(true, nil),
			clock.EXPECT().NowUsecs().Return(uint64(110)),
			pin.EXPECT().Level().Return(false, nil),
		)

		s, err := src.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(capture.Sample{Level: true, TimestampUsecs: 100}))

		s, err = src.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(capture.Sample{Level: false, TimestampUsecs: 110}))
	})

	It("should wrap pin errors", func() {
		clock.EXPECT().NowUsecs().Return(uint64(0))
		pin.EXPECT().Level().Return(false, errors.New("gpio busy"))

		_, err := src.Next()
		Expect(err).To(MatchError("failed to read pin: gpio busy"))
	})

	It("should drive a session", func() {
		protocol, err := nec.LookupProtocol(nec.ProtocolNEC)
		Expect(err).NotTo(HaveOccurred())
		samples, _ := synthFrame(protocol, 0x04, 0x08, 0)

		i := 0
		clock.EXPECT().NowUsecs().DoAndReturn(func() uint64 {
			return samples[i].TimestampUsecs
		}).AnyTimes()
		pin.EXPECT().Level().DoAndReturn(func() (bool, error) {
			level := samples[i].Level
			i++
			return level, nil
		}).AnyTimes()

		sess, err := New(protocol, nec.DefaultPlatform())
		Expect(err).NotTo(HaveOccurred())
		frame, err := sess.DecodeOne(context.Background(), src)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.Address).To(Equal(uint32(0x04)))
		Expect(frame.Command).To(Equal(uint32(0x08)))
	})
})

var _ = Describe("SliceSource", func() {
	It("should replay samples then report io.EOF", func() {
		src := NewSliceSource([]capture.Sample{{Level: true, TimestampUsecs: 1}})
		s, err := src.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.TimestampUsecs).To(Equal(uint64(1)))
		_, err = src.Next()
		Expect(err).To(Equal(io.EOF))
	})
})

var _ = Describe("Statistics", func() {
	It("should count errors by kind and stage", func() {
		stats := NewStatistics()
		stats.RecordSample()
		stats.RecordError(&nec.DecodeError{Kind: nec.ErrUnexpectedLineHigh, Stage: nec.StageCmd})
		stats.RecordError(&nec.DecodeError{Kind: nec.ErrUnexpectedLineHigh, Stage: nec.StageAddr})
		stats.RecordError(nec.ErrSymbolPeriodTooLong)
		stats.RecordFrame(&nec.Frame{Address: 1, Command: 2})

		snap := stats.Snapshot()
		Expect(snap.DecodeErrors).To(Equal(uint64(3)))
		Expect(snap.ErrorsByKind).To(Equal(map[string]uint64{
			"UNEXPECTED_LINE_HIGH":   2,
			"SYMBOL_PERIOD_TOO_LONG": 1,
		}))
		Expect(snap.ErrorsByStage).To(Equal(map[string]uint64{"CMD": 1, "ADDR": 1}))

		out := stats.String()
		Expect(out).To(ContainSubstring("Frames:                 1 (25.0%)"))
		Expect(out).To(ContainSubstring("UNEXPECTED_LINE_HIGH:"))
		Expect(out).To(ContainSubstring("Last Frame:      addr: 0x1, cmd: 0x2"))

		stats.Reset()
		snap = stats.Snapshot()
		Expect(snap.TotalSamples).To(BeZero())
		Expect(snap.ErrorsByKind).To(BeEmpty())
		Expect(snap.LastFrame).To(BeNil())
	})
})
