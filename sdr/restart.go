package sdr

import (
	"os"
	"os/exec"
)

// runRestart starts the profile's restart command without waiting for it.
// The exit status is logged when it arrives.
func (s *SDR) runRestart() {
	line := s.prof.RestartCmd
	if line == "" {
		return
	}
	cmd := exec.Command("sh", "-c", line)
	cmd.Env = append(os.Environ(), "SDR_NAME="+s.name, "SDR_PATH="+s.prof.Path)
	if err := cmd.Start(); err != nil {
		s.log.Error("restart command failed to start", "cmd", line, "err", err)
		return
	}
	s.log.Info("restart command started", "cmd", line, "pid", cmd.Process.Pid)
	go func() {
		if err := cmd.Wait(); err != nil {
			s.log.Warn("restart command failed", "cmd", line, "err", err)
			return
		}
		s.log.Info("restart command finished", "cmd", line)
	}()
}
