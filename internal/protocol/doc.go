// Package protocol implements STP, the smart house transport protocol.
// It handles length-prefixed UTF-8 message framing, the four-byte magic
// handshake, request line parsing, and the one-request-per-connection
// session model used by both the server and the client.
package protocol
