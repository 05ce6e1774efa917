package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/warden/internal/config"
)

// Environment keys announced to every HTTP worker process. The worker
// entry point reads these instead of parsing flags so the command line
// stays a stable signature.
const (
	EnvListenerFD        = "WARDEN_LISTENER_FD"
	EnvHeartbeatFile     = "WARDEN_HEARTBEAT_FILE"
	EnvMaxRequests       = "WARDEN_MAX_REQUESTS"
	EnvRequestTimeout    = "WARDEN_REQUEST_TIMEOUT"
	EnvGracefulTimeout   = "WARDEN_GRACEFUL_TIMEOUT"
	EnvKeepAlive         = "WARDEN_KEEP_ALIVE"
	EnvWorkerConnections = "WARDEN_WORKER_CONNECTIONS"
	EnvThreads           = "WARDEN_THREADS"
	EnvBacklog           = "WARDEN_BACKLOG"
)

// listenerFD is the file descriptor number workers inherit the shared
// listening socket on (fd 3, the first ExtraFiles slot).
const listenerFD = 3

// HTTPPoolConfig carries the serving pool's operational parameters.
type HTTPPoolConfig struct {
	BindAddr          string
	PoolSize          int
	WorkerCommand     []string
	ThreadsPerWorker  int
	WorkerConnections int
	Backlog           int
	MaxRequests       int
	MaxRequestsJitter int
	RequestTimeout    time.Duration
	GracefulTimeout   time.Duration
	KeepAlive         time.Duration
	HeartbeatDir      string
	LogFile           string
}

// PoolConfigFromServer maps the loaded configuration plus the computed
// pool size onto an HTTPPoolConfig.
func PoolConfigFromServer(server config.ServerConfig, paths config.PathsConfig, size int) HTTPPoolConfig {
	if size < server.MinWorkers {
		size = server.MinWorkers
	}
	return HTTPPoolConfig{
		BindAddr:          server.BindAddr,
		PoolSize:          size,
		WorkerCommand:     server.WorkerCommand,
		ThreadsPerWorker:  server.ThreadsPerWorker,
		WorkerConnections: server.WorkerConnections,
		Backlog:           server.Backlog,
		MaxRequests:       server.MaxRequests,
		MaxRequestsJitter: server.MaxRequestsJitter,
		RequestTimeout:    server.RequestTimeout,
		GracefulTimeout:   server.GracefulTimeout,
		KeepAlive:         server.KeepAlive,
		HeartbeatDir:      paths.HeartbeatDir,
		LogFile:           filepath.Join(paths.LogsDir, "http.log"),
	}
}

// WorkerStatus describes one live pool worker.
type WorkerStatus struct {
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
	MaxRequests int       `json:"max_requests"`
}

// PoolStatus is a point-in-time view of the serving pool.
type PoolStatus struct {
	BindAddr  string         `json:"bind_addr"`
	PoolSize  int            `json:"pool_size"`
	StartedAt time.Time      `json:"started_at"`
	Restarts  int            `json:"restarts"`
	Workers   []WorkerStatus `json:"workers"`
}

type poolWorker struct {
	cmd         *exec.Cmd
	pid         int
	startedAt   time.Time
	maxRequests int
	heartbeat   string
}

// HTTPPool is the serving pool master. It binds the listening address
// once, hands the socket to every worker process it spawns, and rotates
// workers without ever tearing the socket down: a worker that exits
// after its request budget, crashes, or goes stuck on a request is
// replaced while the listener stays bound, so steady-state recycling is
// invisible to clients.
type HTTPPool struct {
	cfg    HTTPPoolConfig
	logger *slog.Logger

	listener *net.TCPListener
	lnFile   *os.File
	logFile  *os.File

	mu       sync.Mutex
	workers  map[int]*poolWorker
	restarts int
	stopping bool
	started  time.Time

	waiters sync.WaitGroup
	stopCh  chan struct{}
}

// NewHTTPPool returns an unstarted pool master.
func NewHTTPPool(cfg HTTPPoolConfig, logger *slog.Logger) *HTTPPool {
	return &HTTPPool{
		cfg:     cfg,
		logger:  logger.With("component", "http_pool"),
		workers: make(map[int]*poolWorker),
		stopCh:  make(chan struct{}),
	}
}

// Start binds the listener and spawns the full pool, then returns. The
// monitor goroutines keep running until Stop.
func (p *HTTPPool) Start() error {
	addr, err := net.ResolveTCPAddr("tcp", p.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("invalid bind address %q: %w", p.cfg.BindAddr, err)
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", p.cfg.BindAddr, err)
	}
	lnFile, err := ln.File()
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to dup listener: %w", err)
	}

	if err := os.MkdirAll(p.cfg.HeartbeatDir, 0o755); err != nil {
		_ = ln.Close()
		_ = lnFile.Close()
		return fmt.Errorf("failed to create heartbeat directory: %w", err)
	}
	logFile, err := openRoleLog(p.cfg.LogFile)
	if err != nil {
		_ = ln.Close()
		_ = lnFile.Close()
		return err
	}

	p.listener = ln
	p.lnFile = lnFile
	p.logFile = logFile
	p.started = time.Now().UTC()

	for i := 0; i < p.cfg.PoolSize; i++ {
		if err := p.spawnWorker(); err != nil {
			// Partial pools still serve; the operator sees the error in
			// the supervisor log and the short pool in /status.
			p.logger.Error("failed to spawn pool worker", "error", err)
		}
	}

	p.waiters.Add(1)
	go p.heartbeatMonitor()

	p.logger.Info("http pool started",
		"bind_addr", p.Addr(), "pool_size", p.cfg.PoolSize,
		"max_requests", p.cfg.MaxRequests, "jitter", p.cfg.MaxRequestsJitter)
	return nil
}

// Addr returns the bound listener address.
func (p *HTTPPool) Addr() string {
	if p.listener == nil {
		return p.cfg.BindAddr
	}
	return p.listener.Addr().String()
}

// Snapshot reports the current pool state.
func (p *HTTPPool) Snapshot() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := PoolStatus{
		BindAddr:  p.Addr(),
		PoolSize:  p.cfg.PoolSize,
		StartedAt: p.started,
		Restarts:  p.restarts,
		Workers:   make([]WorkerStatus, 0, len(p.workers)),
	}
	for _, w := range p.workers {
		st.Workers = append(st.Workers, WorkerStatus{
			PID:         w.pid,
			StartedAt:   w.startedAt,
			MaxRequests: w.maxRequests,
		})
	}
	return st
}

// Stop gracefully drains the pool: workers get SIGTERM and the graceful
// timeout to finish in-flight requests, then SIGKILL. The listener is
// closed only after the last worker is gone — it is never torn down
// while a worker recycle is in flight.
func (p *HTTPPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	pids := p.livePIDs()
	p.mu.Unlock()
	close(p.stopCh)

	for _, pid := range pids {
		_ = syscall.Kill(pid, syscall.SIGTERM)
	}

	deadline := time.Now().Add(p.cfg.GracefulTimeout)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		n := len(p.workers)
		p.mu.Unlock()
		if n == 0 {
			break
		}
		select {
		case <-ctx.Done():
			deadline = time.Now()
		case <-time.After(50 * time.Millisecond):
		}
	}

	p.mu.Lock()
	for _, pid := range p.livePIDs() {
		p.logger.Warn("worker exceeded graceful timeout, killing", "pid", pid)
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
	p.mu.Unlock()

	p.waiters.Wait()

	var errs []error
	if err := p.lnFile.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.listener.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.logFile.Close(); err != nil {
		errs = append(errs, err)
	}
	p.logger.Info("http pool stopped", "restarts", p.restarts)
	if len(errs) > 0 {
		return fmt.Errorf("http pool shutdown: %v", errs)
	}
	return nil
}

// spawnWorker starts one worker with the inherited listener and a fresh
// request budget.
func (p *HTTPPool) spawnWorker() error {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return fmt.Errorf("pool is stopping")
	}
	p.mu.Unlock()

	budget := p.requestBudget()
	heartbeat := filepath.Join(p.cfg.HeartbeatDir, uuid.New().String())

	cmd := exec.Command(p.cfg.WorkerCommand[0], p.cfg.WorkerCommand[1:]...)
	cmd.Stdout = p.logFile
	cmd.Stderr = p.logFile
	cmd.ExtraFiles = []*os.File{p.lnFile}
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", EnvListenerFD, listenerFD),
		fmt.Sprintf("%s=%s", EnvHeartbeatFile, heartbeat),
		fmt.Sprintf("%s=%d", EnvMaxRequests, budget),
		fmt.Sprintf("%s=%s", EnvRequestTimeout, p.cfg.RequestTimeout),
		fmt.Sprintf("%s=%s", EnvGracefulTimeout, p.cfg.GracefulTimeout),
		fmt.Sprintf("%s=%s", EnvKeepAlive, p.cfg.KeepAlive),
		fmt.Sprintf("%s=%d", EnvWorkerConnections, p.cfg.WorkerConnections),
		fmt.Sprintf("%s=%d", EnvThreads, p.cfg.ThreadsPerWorker),
		fmt.Sprintf("%s=%d", EnvBacklog, p.cfg.Backlog),
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start http worker: %w", err)
	}

	w := &poolWorker{
		cmd:         cmd,
		pid:         cmd.Process.Pid,
		startedAt:   time.Now().UTC(),
		maxRequests: budget,
		heartbeat:   heartbeat,
	}

	p.mu.Lock()
	p.workers[w.pid] = w
	p.mu.Unlock()

	p.waiters.Add(1)
	go p.reapWorker(w)

	p.logger.Debug("spawned http worker", "pid", w.pid, "max_requests", budget)
	return nil
}

// reapWorker waits for one worker to exit and replaces it unless the
// pool is stopping.
func (p *HTTPPool) reapWorker(w *poolWorker) {
	defer p.waiters.Done()

	err := w.cmd.Wait()

	p.mu.Lock()
	delete(p.workers, w.pid)
	stopping := p.stopping
	if !stopping {
		p.restarts++
	}
	p.mu.Unlock()
	_ = os.Remove(w.heartbeat)

	if stopping {
		return
	}

	// Voluntary exit after the request budget and crashes look the same
	// here; either way the replacement keeps the socket served.
	p.logger.Info("http worker exited, replacing",
		"pid", w.pid, "uptime", time.Since(w.startedAt).Round(time.Second), "exit", exitReason(err))
	if serr := p.spawnWorker(); serr != nil {
		p.logger.Error("failed to replace http worker", "error", serr)
	}
}

// heartbeatMonitor recycles workers whose heartbeat file has gone stale:
// a request running past the configured timeout leaves the worker unable
// to touch its heartbeat, so it is treated as stuck.
func (p *HTTPPool) heartbeatMonitor() {
	defer p.waiters.Done()

	interval := p.cfg.RequestTimeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.recycleStuckWorkers()
		}
	}
}

func (p *HTTPPool) recycleStuckWorkers() {
	p.mu.Lock()
	var stuck []*poolWorker
	for _, w := range p.workers {
		info, err := os.Stat(w.heartbeat)
		if err != nil {
			// Worker has not heartbeated yet; max-requests recycling
			// still bounds its lifetime.
			continue
		}
		if time.Since(info.ModTime()) > p.cfg.RequestTimeout {
			stuck = append(stuck, w)
		}
	}
	p.mu.Unlock()

	for _, w := range stuck {
		p.logger.Warn("http worker stuck past request timeout, recycling", "pid", w.pid)
		_ = syscall.Kill(w.pid, syscall.SIGTERM)
		go p.forceKillAfterGrace(w.pid)
	}
}

// forceKillAfterGrace kills a recycled worker that ignored SIGTERM once
// its graceful timeout runs out. reapWorker handles the replacement.
func (p *HTTPPool) forceKillAfterGrace(pid int) {
	select {
	case <-p.stopCh:
		return
	case <-time.After(p.cfg.GracefulTimeout):
	}

	p.mu.Lock()
	_, alive := p.workers[pid]
	p.mu.Unlock()
	if alive {
		p.logger.Warn("recycled worker ignored graceful signal, killing", "pid", pid)
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}

// requestBudget returns max-requests with uniform jitter applied, so the
// pool does not recycle in lockstep.
func (p *HTTPPool) requestBudget() int {
	j := p.cfg.MaxRequestsJitter
	if j <= 0 {
		return p.cfg.MaxRequests
	}
	budget := p.cfg.MaxRequests + rand.Intn(2*j+1) - j
	if budget < 1 {
		budget = 1
	}
	return budget
}

// livePIDs must be called with p.mu held or immediately after copying.
func (p *HTTPPool) livePIDs() []int {
	pids := make([]int, 0, len(p.workers))
	for pid := range p.workers {
		pids = append(pids, pid)
	}
	return pids
}

func exitReason(err error) string {
	if err == nil {
		return "exit 0"
	}
	return err.Error()
}
