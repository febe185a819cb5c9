// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package monitoring serves live decode status over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/Thermoquad/necscope/pkg/nec"
	"github.com/Thermoquad/necscope/pkg/recorder"
	"github.com/Thermoquad/necscope/pkg/session"
)

// DefaultFrameLogSize is how many recent frames and errors are kept
const DefaultFrameLogSize = 100

// MaxProfileDuration caps /api/profile
const MaxProfileDuration = 10 * time.Second

// History lists frames persisted by a recorder
type History interface {
	ListFrames(f recorder.Filter) ([]recorder.FrameRow, error)
}

// Monitor serves decode statistics, recent frames, the active protocol and
// process resources.
type Monitor struct {
	portNumber int

	mu       sync.Mutex
	stats    *session.Statistics
	protocol *nec.ProtocolConfig
	history  History

	frameLog *FrameLog
	server   *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		frameLog: NewFrameLog(DefaultFrameLogSize),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 select
// a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterStatistics sets the statistics served by /api/stats
func (m *Monitor) RegisterStatistics(s *session.Statistics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = s
}

// RegisterProtocol sets the protocol served by /api/protocol
func (m *Monitor) RegisterProtocol(p nec.ProtocolConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.protocol = &p
}

// RegisterHistory sets the recorder served by /api/history
func (m *Monitor) RegisterHistory(h History) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = h
}

// FrameLog returns the log of recent frames and errors
func (m *Monitor) FrameLog() *FrameLog {
	return m.frameLog
}

// RecordFrame adds a frame to the recent frame log
func (m *Monitor) RecordFrame(f *nec.Frame) {
	m.frameLog.AddFrame(f)
}

// RecordError adds a decode error to the recent error log
func (m *Monitor) RecordError(err error) {
	m.frameLog.AddError(err)
}

// Router returns the HTTP routes
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/frames", m.listFrames)
	r.HandleFunc("/api/errors", m.listErrors)
	r.HandleFunc("/api/history", m.listHistory)
	r.HandleFunc("/api/protocol", m.listProtocol)
	r.HandleFunc("/api/protocol/{field}", m.listProtocolField)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/", m.summary)
	return r
}

// StartServer starts serving in the background and returns the URL
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", m.listenAddress())
	if err != nil {
		return "", fmt.Errorf("failed to start monitoring server: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring decoder with %s\n", url)

	m.server = &http.Server{Handler: m.Router()}
	go func() {
		if err := m.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("monitoring server stopped: %v", err)
		}
	}()

	return url, nil
}

// listenAddress is the port requested with WithPortNumber, or any free port
func (m *Monitor) listenAddress() string {
	if m.portNumber >= 1000 {
		return ":" + strconv.Itoa(m.portNumber)
	}
	return ":0"
}

// Shutdown stops the server started by StartServer
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

func (m *Monitor) summary(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	m.mu.Lock()
	stats := m.stats
	protocol := m.protocol
	m.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if protocol != nil {
		fmt.Fprintf(w, "Protocol: %s\n", protocol.Name)
	}
	if stats != nil {
		fmt.Fprint(w, stats.String())
	}
	for _, f := range m.frameLog.Frames(10) {
		fmt.Fprintf(w, "[%s] %s\n", f.Time.Format("15:04:05.000"), f.Text)
	}
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()

	if stats == nil {
		httpError(w, http.StatusNotFound, errors.New("no statistics registered"))
		return
	}

	writeJSON(w, stats.Snapshot())
}

func (m *Monitor) listFrames(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, m.frameLog.Frames(limit))
}

func (m *Monitor) listErrors(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, m.frameLog.Errors(limit))
}

func (m *Monitor) listHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	m.mu.Lock()
	history := m.history
	m.mu.Unlock()

	if history == nil {
		httpError(w, http.StatusNotFound, errors.New("no recorder registered"))
		return
	}

	rows, err := history.ListFrames(recorder.Filter{
		SessionID: r.URL.Query().Get("session"),
		Protocol:  r.URL.Query().Get("protocol"),
		Limit:     limit,
	})
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []recorder.FrameRow{}
	}

	writeJSON(w, rows)
}

func (m *Monitor) protocolOr404(w http.ResponseWriter) *nec.ProtocolConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.protocol == nil {
		httpError(w, http.StatusNotFound, errors.New("no protocol registered"))
		return nil
	}
	p := *m.protocol
	return &p
}

func (m *Monitor) listProtocol(w http.ResponseWriter, _ *http.Request) {
	protocol := m.protocolOr404(w)
	if protocol == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(protocol)
	serializer.SetMaxDepth(1)

	m.serialize(w, serializer.Serialize)
}

func (m *Monitor) listProtocolField(w http.ResponseWriter, r *http.Request) {
	protocol := m.protocolOr404(w)
	if protocol == nil {
		return
	}

	fields := strings.Split(mux.Vars(r)["field"], ".")

	serializer := goseth.NewSerializer()
	serializer.SetRoot(protocol)
	serializer.SetMaxDepth(1)

	if err := serializer.SetEntryPoint(fields); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	m.serialize(w, serializer.Serialize)
}

func (m *Monitor) serialize(w http.ResponseWriter, serialize func(io.Writer) error) {
	buf := bytes.NewBuffer(nil)
	if err := serialize(buf); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("monitoring: write failed: %v", err)
	}
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	cpuPercent, err := process.CPUPercent()
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	memorySize, err := process.MemoryInfo()
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

// collectProfile samples the CPU for ?ms= milliseconds, one second by default
func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("ms"); s != "" {
		ms, err := strconv.Atoi(s)
		if err != nil || ms <= 0 {
			httpError(w, http.StatusBadRequest, fmt.Errorf("invalid duration %q", s))
			return
		}
		duration = time.Duration(ms) * time.Millisecond
	}
	if duration > MaxProfileDuration {
		duration = MaxProfileDuration
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		httpError(w, http.StatusConflict, err)
		return
	}

	select {
	case <-time.After(duration):
	case <-r.Context().Done():
	}

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, prof)
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	bytes, err := json.Marshal(v)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(bytes); err != nil {
		log.Printf("monitoring: write failed: %v", err)
	}
}

func httpError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	fmt.Fprintf(w, "Error: %s", err)
}
