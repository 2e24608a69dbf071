// Package command maps RESP3 messages to the commands a resp3d server
// understands, and back.
//
// Clients send every command as an Array of BulkStrings, the command name
// first. Replies are plain protocol messages, except for store updates which
// the server pushes unprompted as Push messages.
package command

type Command string

const (
	QUIT  Command = "QUIT"
	PING  Command = "PING"
	ECHO  Command = "ECHO"
	HELLO Command = "HELLO"
	SET   Command = "SET"
	GET   Command = "GET"
	DEL   Command = "DEL"
)

// ProtocolVersion is the only protocol version HELLO accepts.
const ProtocolVersion = 3

// Reply codes of the error replies sent back to clients.
const (
	CodeErr     = "ERR"
	CodeNoProto = "NOPROTO"
)
