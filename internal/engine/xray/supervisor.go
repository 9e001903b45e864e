package xray

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"nefrit/internal/platform/config"
)

// ErrSpawn marks an engine launch failure. The supervisor stays stopped and
// a later restart may retry; nothing about it is fatal to the service.
var ErrSpawn = errors.New("xray spawn failed")

const stopGrace = 5 * time.Second

// Supervisor is the sole owner of the engine child process. Every restart
// trigger (activation, revocation, scheduler tick, operator command)
// funnels through one mutex, so a stop from one trigger can never
// interleave with a spawn from another.
type Supervisor struct {
	gen *Generator
	cfg config.XrayConfig

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	running atomic.Bool
}

func NewSupervisor(gen *Generator, cfg config.XrayConfig) *Supervisor {
	return &Supervisor{gen: gen, cfg: cfg}
}

// Restart stops the engine if running, regenerates the config artifact and
// spawns a fresh process against it. The settle and warm-up delays bound
// how long a caller can be held on the supervisor mutex.
func (s *Supervisor) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	if err := s.gen.Write(); err != nil {
		return fmt.Errorf("generate config: %w", err)
	}

	time.Sleep(s.cfg.SettleDelay)

	argv := append(append([]string{}, s.cfg.Command...), s.cfg.ConfigPath)
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	done := make(chan struct{})
	s.cmd = cmd
	s.done = done
	s.running.Store(true)
	go s.reap(cmd, done)

	time.Sleep(s.cfg.WarmupDelay)

	log.Info().Int("pid", cmd.Process.Pid).Msg("xray started")
	return nil
}

// Stop terminates the engine if running. Safe to call when already stopped.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// IsHealthy reports whether the engine child process is currently alive.
// It never blocks on an in-flight restart.
func (s *Supervisor) IsHealthy() bool {
	return s.running.Load()
}

func (s *Supervisor) stopLocked() {
	if s.cmd == nil {
		return
	}

	cmd, done := s.cmd, s.done
	s.cmd = nil
	s.done = nil
	s.running.Store(false)

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone; the reaper has or will observe the exit.
		<-done
		return
	}

	select {
	case <-done:
	case <-time.After(stopGrace):
		log.Warn().Int("pid", cmd.Process.Pid).Msg("xray ignored SIGTERM, killing")
		cmd.Process.Kill()
		<-done
	}

	log.Info().Msg("xray stopped")
}

// reap waits for the child so it never zombies, and clears the running
// state if the engine exited on its own rather than through stopLocked.
func (s *Supervisor) reap(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	close(done)

	s.mu.Lock()
	if s.cmd == cmd {
		s.cmd = nil
		s.done = nil
		s.running.Store(false)
		log.Error().Err(err).Msg("xray exited unexpectedly")
	}
	s.mu.Unlock()
}
