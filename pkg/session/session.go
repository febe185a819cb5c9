// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session runs NEC decode sessions against a sample source.
//
// A session owns one decoder state. DecodeOne stops at the first frame or the
// first decode error; Run keeps decoding, restarting from idle after every
// error, until the source is exhausted or the context is done.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/rs/xid"

	"github.com/Thermoquad/necscope/pkg/capture"
	"github.com/Thermoquad/necscope/pkg/nec"
)

// FrameHandler is called for every decoded frame
type FrameHandler func(*nec.Frame)

// ErrorHandler is called for every decode error
type ErrorHandler func(err error)

// SampleHandler is called for every sample before it is decoded
type SampleHandler func(capture.Sample)

// Session decodes frames from a Source. It is not safe for concurrent use,
// except for its Statistics.
type Session struct {
	id       xid.ID
	decoder  *nec.Decoder
	stats    *Statistics
	logger   *log.Logger
	onFrame  FrameHandler
	onError  ErrorHandler
	onSample SampleHandler
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger used for decode errors nobody else handles
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithFrameHandler sets the frame callback
func WithFrameHandler(h FrameHandler) Option {
	return func(s *Session) { s.onFrame = h }
}

// WithErrorHandler sets the decode error callback
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Session) { s.onError = h }
}

// WithSampleHandler sets the sample callback, used to tee samples to a capture file
func WithSampleHandler(h SampleHandler) Option {
	return func(s *Session) { s.onSample = h }
}

// WithStatistics shares a statistics tracker between sessions
func WithStatistics(stats *Statistics) Option {
	return func(s *Session) { s.stats = stats }
}

// New creates a session for a protocol
func New(protocol nec.ProtocolConfig, platform nec.PlatformConfig, opts ...Option) (*Session, error) {
	decoder, err := nec.NewDecoder(protocol, platform)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:      xid.New(),
		decoder: decoder,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stats == nil {
		s.stats = NewStatistics()
	}
	return s, nil
}

// ID returns the session's unique ID
func (s *Session) ID() xid.ID {
	return s.id
}

// Stats returns the session statistics
func (s *Session) Stats() *Statistics {
	return s.stats
}

// Protocol returns the protocol being decoded
func (s *Session) Protocol() nec.ProtocolConfig {
	return s.decoder.Protocol()
}

// Stage returns the decoder's current stage
func (s *Session) Stage() nec.Stage {
	return s.decoder.Stage()
}

// Reset abandons any partial frame
func (s *Session) Reset() {
	s.decoder.Reset()
}

// DecodeOne reads samples until one frame is decoded.
// A decode error ends the attempt and is returned; the session is left idle
// so the caller may try again.
func (s *Session) DecodeOne(ctx context.Context, src Source) (*nec.Frame, error) {
	for {
		frame, err := s.step(ctx, src)
		if err != nil {
			if isDecodeError(err) {
				s.report(err)
			}
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
	}
}

// Run decodes frames until src is exhausted or ctx is done.
// Decode errors are reported and decoding restarts from idle on the next
// rising edge. Returns nil at the end of the source.
func (s *Session) Run(ctx context.Context, src Source) error {
	for {
		_, err := s.step(ctx, src)
		if err == nil {
			continue
		}
		if isDecodeError(err) {
			s.report(err)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}

// step processes one sample
func (s *Session) step(ctx context.Context, src Source) (*nec.Frame, error) {
	if err := ctx.Err(); err != nil {
		s.decoder.Reset()
		return nil, err
	}

	sample, err := src.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, fmt.Errorf("sample source: %w", err)
	}

	s.stats.RecordSample()
	if s.onSample != nil {
		s.onSample(sample)
	}

	frame, err := s.decoder.DecodeSample(sample.Level, sample.TimestampUsecs)
	if err != nil {
		return nil, err
	}
	if frame != nil {
		s.stats.RecordFrame(frame)
		if s.onFrame != nil {
			s.onFrame(frame)
		}
	}
	return frame, nil
}

func (s *Session) report(err error) {
	s.stats.RecordError(err)
	if s.onError != nil {
		s.onError(err)
		return
	}
	if s.logger != nil {
		s.logger.Printf("[%s] decode error: %v", s.id, err)
	}
}

func isDecodeError(err error) bool {
	var decodeErr *nec.DecodeError
	return errors.As(err, &decodeErr)
}

func stageOf(err error) (nec.Stage, bool) {
	var decodeErr *nec.DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr.Stage, true
	}
	return 0, false
}
