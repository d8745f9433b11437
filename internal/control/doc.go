// Package control provides the feedback controller shared by the drive
// axes: a PID with a leaky integral, caller-side slew limiting and
// dual-threshold settling timeouts.
package control
