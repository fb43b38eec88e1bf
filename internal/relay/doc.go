// Package relay manages the one live device connection and the sample
// pipeline attached to it.
//
// Each Connect starts a new connection epoch. The previous device is closed,
// the batch in progress is dropped, and after a settle delay that gives the
// operating system time to release the device the new path is opened. Bytes
// read from a connection whose epoch is no longer current never reach a
// batch, so a reconnect cannot mix samples from two devices.
package relay
