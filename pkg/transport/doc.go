// Package transport implements the TCP transport to the access device's
// control API.
//
// Messages are framed with a 4-byte big-endian length prefix. The device
// accepts a single control channel and answers commands strictly in the
// order they were sent, so the Conn wrapper exposes blocking Send and
// Receive primitives; serialization of concurrent callers happens one
// layer up, in the command executor.
package transport
