package main

import (
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"dbkeeper/pkg/common"
)

// supervisor runs the dbkeeper binary next to it, relays termination and
// reload signals to it and exits with the child's exit code.
func main() {
	self, err := os.Executable()
	if err != nil {
		common.GetLogger().Fatal().Err(err).Msg("supervisor: cannot resolve executable path")
	}
	target := filepath.Join(filepath.Dir(self), "dbkeeper")
	if _, err := os.Stat(target); err != nil {
		common.GetLogger().Fatal().Err(err).Str("target", target).Msg("supervisor: target binary not found")
	}

	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	os.Exit(supervise(target, os.Args[1:], sigs))
}

// supervise starts target and blocks until it exits. Signals received on
// sigs are forwarded to the child.
func supervise(target string, args []string, sigs <-chan os.Signal) int {
	log := common.GetLogger().With().Str("component", "supervisor").Logger()

	cmd := exec.Command(target, args...)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Start(); err != nil {
		log.Error().Err(err).Str("target", target).Msg("start failed")
		return 1
	}

	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	for {
		select {
		case s := <-sigs:
			log.Info().Str("signal", s.String()).Int("pid", cmd.Process.Pid).Msg("forwarding signal")
			if err := cmd.Process.Signal(s); err != nil && !errors.Is(err, os.ErrProcessDone) {
				log.Warn().Err(err).Msg("forward failed")
			}
		case err := <-waited:
			return exitCode(err)
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}
	return 1
}
