// Package wire implements the binary control-protocol messages exchanged
// with the access device.
//
// Messages are CBOR maps with integer keys, length-prefix framed by the
// transport package. A session carries one in-flight command at a time and
// the device answers in submission order, so replies are attributed by
// ordering; the correlation sequence is validated as a protocol-integrity
// check, not used for matching.
//
// Two message shapes exist:
//
//   - Command: client to device. Operation + path + string attributes.
//   - Reply: device to client. Status, optional query records, optional
//     human-readable message.
package wire
