package wire

import (
	"fmt"
)

// Device record collections addressed by commands.
const (
	// PathCredential is the access-credential collection. One record per
	// provisioned subscriber, keyed by name.
	PathCredential = "/access/credential"

	// PathQueue is the bandwidth-queue collection. One record per
	// provisioned subscriber, keyed by name.
	PathQueue = "/bandwidth/queue"

	// PathIdentity is the device identity/status query used for health
	// checks.
	PathIdentity = "/system/identity"

	// PathAuthChallenge requests an authentication nonce on a fresh
	// connection.
	PathAuthChallenge = "/auth/challenge"

	// PathAuthProof submits the credential proof derived from the nonce.
	PathAuthProof = "/auth/proof"
)

// Well-known record attribute names.
const (
	AttrName     = "name"
	AttrPassword = "password"
	AttrService  = "service"
	AttrComment  = "comment"
	AttrDisabled = "disabled"
	AttrTarget   = "target"
	AttrMaxLimit = "max-limit"
	AttrUser     = "user"
	AttrNonce    = "nonce"
	AttrProof    = "proof"
)

// Command represents a request from the engine to the device.
//
// CBOR encoding:
//
//	{
//	  1: seq,         // uint32: session-scoped, strictly increasing, > 0
//	  2: operation,   // uint8: 1=add 2=update 3=enable 4=disable 5=query
//	  3: path,        // string: target collection
//	  4: attributes   // map[string]string
//	}
type Command struct {
	Seq        uint32            `cbor:"1,keyasint"`
	Operation  Operation         `cbor:"2,keyasint"`
	Path       string            `cbor:"3,keyasint"`
	Attributes map[string]string `cbor:"4,keyasint,omitempty"`
}

// Validate checks if the command is well-formed.
func (c *Command) Validate() error {
	if c.Seq == 0 {
		return fmt.Errorf("seq 0 is reserved")
	}
	if !c.Operation.IsValid() {
		return fmt.Errorf("invalid operation: %d", c.Operation)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// Attr returns the named attribute, or "" if absent.
func (c *Command) Attr(name string) string {
	return c.Attributes[name]
}

// Reply represents a device response.
//
// CBOR encoding:
//
//	{
//	  1: seq,       // uint32: matches the command
//	  2: status,    // uint8: 0=ok, or error code
//	  5: records,   // array of map[string]string (query results)
//	  6: message    // string: human-readable detail on error
//	}
type Reply struct {
	Seq     uint32              `cbor:"1,keyasint"`
	Status  Status              `cbor:"2,keyasint"`
	Records []map[string]string `cbor:"5,keyasint,omitempty"`
	Message string              `cbor:"6,keyasint,omitempty"`
}

// IsSuccess returns true if the reply indicates success.
func (r *Reply) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// First returns the first record of a query reply, or nil when the
// query matched nothing.
func (r *Reply) First() map[string]string {
	if len(r.Records) == 0 {
		return nil
	}
	return r.Records[0]
}
