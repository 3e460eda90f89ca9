package runner

import "syscall"

// forceKillPlatform is the last-resort step of Stop's escalation:
// SIGKILL the whole process group again, in case the earlier SIGKILL
// only reached the immediate child (e.g. it had already re-parented a
// grandchild out of the group). Mirrors the teacher's unconditional
// use of syscall.SysProcAttr{Setpgid: true} — this module targets the
// POSIX platforms that pattern supports, not Windows.
func (r *Runner) forceKillPlatform() {
	r.procMu.Lock()
	cmd := r.cmd
	r.procMu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
