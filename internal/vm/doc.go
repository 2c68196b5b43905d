// Package vm launches qemu-system-x86_64 virtual machines.
//
// The emulator is a long-running foreground application, so Launch never waits
// for it: the process is spawned, reaped in the background, and a LaunchHandle
// is returned as soon as the spawn succeeds. Callers should only reset their
// input state once a handle has been returned.
package vm
