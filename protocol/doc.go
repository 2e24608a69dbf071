// Package protocol implements encoding and decoding of RESP3, the protocol
// in-memory data stores use to talk to their clients.
//
// The package only deals with the serialisation format. What a command means,
// connection handling and authentication live elsewhere.
//
// === Values
//
// Every value starts with a one byte type tag. Lines are `\r\n` terminated.
//
// Line types carry their content on the tag line
//
//   ```
//     +OK\r\n                  SimpleString
//     -ERR unknown command\r\n SimpleError
//     :-42\r\n                 Integer
//     ,3.14\r\n                Double (also inf, -inf and nan)
//     #t\r\n                   Boolean
//     _\r\n                    Null
//     (3492890328409238509\r\n BigNumber
//   ```
//
// Blob types carry a byte length, then exactly that many bytes, then `\r\n`
//
//   ```
//     $5\r\nhello\r\n          BulkString
//     =9\r\ntxt:hello\r\n      VerbatimString, the format counts towards the length
//     !11\r\nERR bad arg\r\n   BlobError
//   ```
//
// Aggregates carry an element count followed by the elements, each encoded
// the same way. Maps count pairs and are followed by key, value, key, value...
//
//   ```
//     *2\r\n:1\r\n:2\r\n       Array
//     %1\r\n+key\r\n:1\r\n     Map
//     ~1\r\n#f\r\n             Set
//     >2\r\n+set\r\n+key\r\n   Push
//   ```
//
// For RESP2 compatibility `$-1\r\n` and `*-1\r\n` decode to Null.
//
// === Encoding
//
// Encode, AppendMessage and Writer turn a Message into bytes. Every Message
// that can be constructed has an encoding, so none of them return encoding
// errors. Constructors such as NewSimpleString reject values that could not
// be encoded.
//
// === Decoding
//
// A Decoder is fed the bytes of one stream in whatever chunks the network
// delivers. Feed returns the messages completed so far and keeps the rest for
// the next call. Malformed input yields a *ProtocolError, after which the
// stream is unusable: a broken length makes every later byte boundary
// ambiguous, so the Decoder does not try to resynchronise.
//
// Reader wraps a Decoder around an io.Reader for callers that prefer a
// blocking ReadMessage.
package protocol
